// A bodiless declaration (external linkage) cannot be imported; the scan
// substitutes a throwing stub and keeps going.
package main

import "fmt"

// checksum is implemented elsewhere.
func checksum(p []byte) uint64

func main() {
	fmt.Println(checksum([]byte("hello")))
}
