// Two instantiations of the same generic type share one canonical method
// body; each instantiation carries its own dictionary.
package main

import "fmt"

type Box[T any] struct {
	value T
}

func (b *Box[T]) Get() T {
	return b.value
}

func (b *Box[T]) Set(v T) {
	b.value = v
}

func sum[T int | float64](xs []T) T {
	var total T
	for _, x := range xs {
		total += x
	}
	return total
}

// unusedHelper is never called from any root.
func unusedHelper() int {
	return 42
}

func main() {
	ints := &Box[int]{}
	ints.Set(7)

	words := &Box[string]{}
	words.Set("seven")

	fmt.Println(ints.Get(), words.Get())
	fmt.Println(sum([]int{1, 2, 3}))
}
