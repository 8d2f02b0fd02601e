// Package ir defines the intermediate representation of SCP programs
// produced by the compiler and consumed by the graph linker.
//
// This package contains type definitions and hashing only. It imports
// nothing internal so that every other package can depend on it.
//
// Key design constraints:
//   - Names, not handles: references between elements are by name until
//     the program is linked into a graph
//   - All JSON tags use snake_case
//   - Program identity is content-addressed (see ProgramID)
package ir
