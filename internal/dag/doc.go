// Package dag holds the directed graph used to prove that an MCU profile's
// requires relation is acyclic. Resources are nodes, "A requires B" is an
// edge, and DetectCycles reports the first cycle found in declaration order.
package dag
