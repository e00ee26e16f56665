// Package descriptors discovers and decodes module and target descriptor
// files. Three formats are supported:
//
//	*.module.yaml, *.target.yaml   YAML, one or more documents per file
//	*.hcl                          module "Name" { ... } and target blocks
//	*.build.go                     scripts evaluated with yaegi
//
// Conditions in HCL files are written as bare expressions; in YAML and Go
// scripts they are strings holding the same expression syntax.
package descriptors
