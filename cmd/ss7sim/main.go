// Command ss7sim is a minimal wiring example for the ss7 module: it
// attaches a loopback network and a toy user part to a Router, restarts
// it, and drives one transmit/receive round trip. It is a demo driver, not
// part of the library — grounded on iti/mrnes's pattern of keeping the
// simulation core importable and leaving example wiring to a small
// command, and on encodeous-nylon/cmd's cobra-based CLI entrypoint.
package main

func main() {
	Execute()
}
