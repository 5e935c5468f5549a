// Command arcctl exercises the arc registry: ownership scenarios, randomized
// retain/release stress runs, and a metrics dump, on any backend and policy.
package main

func main() {
	execute()
}
