// Package main hosts the squash CLI entrypoint and command graph.
//
// The root command takes an input video and a target size in megabytes and
// drives internal/convergence until the encode lands under the target. The
// history, config, and deps subcommands inspect stored runs, scaffold the
// configuration file, and report where ffmpeg/ffprobe resolve to.
//
// Keep this package lean: behaviour lives in the internal packages and this
// package only resolves configuration, wires collaborators, and renders output.
package main
