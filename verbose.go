package main

import "github.com/xyproto/env/v2"

// VerboseMode enables diagnostic output on stderr for the code generator and
// the linker. The -v flag overrides the environment default.
var VerboseMode = env.Bool("DYO_VERBOSE")
