// Package descriptor holds the format-agnostic model of module and target
// descriptors. Loaders in the descriptors package decode YAML, HCL and
// Go-scripted files into these types; the registry owns them afterwards.
package descriptor
