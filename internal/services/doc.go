// Package services defines shared utilities consumed by the squash pipeline
// and its external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and the input path for
//     logging and history correlation.
//   - Structured error markers plus the Wrap helper so validation, probe,
//     encode, convergence, and cancellation failures stay classifiable with
//     errors.Is all the way up to the CLI exit code.
//   - Typed errors for missing binaries and failed encoder runs that carry
//     remediation hints and the encoder's last diagnostic line.
//
// Use these helpers when adding new stages so operational behaviour (error
// handling, exit codes, observability) stays uniform.
package services
