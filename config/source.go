package config

// Source indicates where a configuration value came from.
type Source string

// Configuration sources, lowest priority first.
const (
	SourceDefault Source = "default"
	SourceGlobal  Source = "global" // ~/.config/proref/config.yaml
	SourceLocal   Source = "local"  // .proref.yaml in the git root
	SourceEnv     Source = "env"    // PROREF_* variables
	SourceFlag    Source = "flag"
)
