// Command formationd runs the formation simulation service.
package main

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	ServiceName string = "formationd"
)

func main() {
	Execute()
}
