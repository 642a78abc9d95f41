// Command omrmemctl drives the port library's memory allocators: it runs
// allocation workloads against a simulated address space, prints the
// effective configuration and probes the host for sub-4GB reservations.
package main

func main() {
	execute()
}
