// Package bearings provides catalog-driven behavior machinery:
// declarative state machines with guarded transitions and ordered
// effects.
//
// The core code is in package 'core', and some command-line tools are in `cmd`.
//
// See https://github.com/Comcast/bearings/blob/master/README.md for more.
package bearings
