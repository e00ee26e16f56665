// Package platform resolves module descriptors for an explicit platform
// context. Rule conditions are HCL expressions such as
//
//	platform == "Win64" && configuration != "shipping"
//	in_group("Unix") || flags.with_editor
//
// evaluated against the context's attributes.
package platform
