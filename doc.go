// Package cj is a thin real-time rendering engine layered over a low-level
// graphics API. It owns GPU resource lifetimes through a generation-counted
// handle registry, composes rendering work as a graph of executable nodes,
// and drives a per-window frame loop that decides, each tick, whether and
// how to redraw.
//
// The core is device-agnostic: it talks to the GPU through the Device
// facade, and backends register themselves by name. Importing the vk
// package wires the Vulkan backend:
//
//	import (
//	    "github.com/hellhand/cj"
//	    _ "github.com/hellhand/cj/vk"
//	)
//
//	eng, err := cj.New(cj.WithTargetFPS(60))
//	if err != nil { ... }
//	defer eng.Shutdown()
//
//	win, err := eng.NewWindow(cj.WindowConfig{Title: "demo", Width: 800, Height: 600})
//	graph := eng.NewGraph()
//	graph.AddColorNode("background")
//	win.AttachGraph(graph)
//	eng.Run()
//
// Scheduling is strictly single-threaded and cooperative: one thread owns
// the scheduler, polls events and records all GPU commands. The only
// blocking points are the per-frame in-flight fence and the optional pacing
// sleep.
package cj
