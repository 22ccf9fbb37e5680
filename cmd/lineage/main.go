// Command lineage serves the family tree API and carries the admin
// utilities around it.
//
// Usage:
//
//	lineage [flags] <command>
//
// Every command reads lineage.yaml (if present), LINEAGE_* environment
// variables and the global flags, in that order of increasing precedence.
package main

func main() {
	Execute()
}
