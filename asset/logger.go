package asset

import "github.com/achilleasa/radiance/log"

var logger = log.New("asset")
