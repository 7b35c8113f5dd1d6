// Package configs provides the embedded configuration template for
// seqscout. The template is embedded at build time so `seqscout config
// init` can write it without a source checkout.
//
// To change the template, edit config.example.yaml and rebuild.
package configs

import _ "embed"

// ConfigTemplate is the annotated starter configuration written by
// `seqscout config init`.
//
//go:embed config.example.yaml
var ConfigTemplate string
