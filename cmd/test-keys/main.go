// Command test-keys is a manual test for key injection. It waits 3
// seconds, then taps the given key once and, if --hold is set, holds it
// for a second afterwards. Focus a text editor before the countdown ends.
//
// Usage:
//
//	go run ./cmd/test-keys [--key ArrowRight] [--hold]
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/chaz8081/shiftkey/internal/keys"
)

func main() {
	key := flag.String("key", "k", "logical key name to send (e.g. k, Space, ArrowRight)")
	hold := flag.Bool("hold", false, "also hold the key down for one second")
	flag.Parse()

	fmt.Printf("Will tap %q in 3 seconds...\n", *key)
	fmt.Println("Focus a text editor now!")

	for i := 3; i > 0; i-- {
		fmt.Printf("%d...\n", i)
		time.Sleep(time.Second)
	}

	inj := keys.NewRobotgo()
	if err := inj.Tap(*key); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Tapped.")

	if *hold {
		fmt.Println("Holding for 1s...")
		if err := inj.KeyDown(*key); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		time.Sleep(time.Second)
		if err := inj.KeyUp(*key); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Released.")
	}

	fmt.Println("\nDone!")
}
