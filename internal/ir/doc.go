// Package ir provides the data model shared by every reflred package.
//
// This package contains type definitions and small value helpers only. All
// other internal packages import ir; ir imports nothing internal. This keeps
// the run model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Runs are identified by RunKey (the long run-number form), never by
//     pointer identity. Session lists hold keys, the session arena owns runs.
//   - Every Curve keeps Q, R and DR at equal length; reduced Q is non-decreasing.
//   - Cross-section labels are NFC normalized at the load boundary.
//   - Canonical identity hashing accepts strings, integers and booleans only.
package ir
