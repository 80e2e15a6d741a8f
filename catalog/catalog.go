// contains data structures and tree algorithms that describe an example catalog
package catalog

import (
	jsoniter "github.com/json-iterator/go"
)

const (
	// Indent for json indentation
	Indent string = "  "
	// PathSeparator separator used when accumulating category paths
	PathSeparator = "\\"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary
