// Virtual dispatch through an interface: only the invoked method gets
// vtable slots, and only for types that actually flow into the interface.
package main

import "fmt"

type Shape interface {
	Area() float64
	Perimeter() float64
}

type Circle struct {
	Radius float64
}

func (c *Circle) Area() float64 {
	return 3.14159 * c.Radius * c.Radius
}

func (c *Circle) Perimeter() float64 {
	return 2 * 3.14159 * c.Radius
}

type Square struct {
	Side float64
}

func (s *Square) Area() float64 {
	return s.Side * s.Side
}

func (s *Square) Perimeter() float64 {
	return 4 * s.Side
}

// Triangle is never converted to Shape, so its methods stay out of the
// dispatch set.
type Triangle struct {
	Base, Height float64
}

func (t *Triangle) Area() float64 {
	return t.Base * t.Height / 2
}

func describe(s Shape) {
	fmt.Println(s.Area())
}

func main() {
	describe(&Circle{Radius: 2})
	describe(&Square{Side: 3})
}
