// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.12
//

package goppp

import "errors"

var (
	// Zero or non-finite approximate range to a satellite
	ErrDegenerateGeometry = errors.New("degenerate geometry")

	// Normal matrix not invertible: too few independent observations,
	// collinear or duplicated satellites
	ErrSingularNormalMatrix = errors.New("singular normal matrix")

	// Malformed epoch input
	ErrInvalidEpoch = errors.New("invalid epoch")
)
