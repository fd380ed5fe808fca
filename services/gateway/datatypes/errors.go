// Copyright (C) 2025 Moodchat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "errors"

// ErrEmptyTurn is returned by TurnRequest.Validate when a turn carries
// neither text nor an image.
var ErrEmptyTurn = errors.New("turn requires a message or an image")
