package receipt

import "errors"

var ErrJobNotFound = errors.New("thumbnail job not found")
