// Command cjdemo opens a window and renders a small three-node graph: a
// color fill, a textured quad (when an image is supplied) and a blur over
// the texture. Escape closes the window.
package main

import (
	"flag"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/hellhand/cj"
	_ "github.com/hellhand/cj/vk"
)

func init() {
	// GLFW/Vulkan require the main thread.
	runtime.LockOSThread()
}

func main() {
	var (
		validation = flag.Bool("validation", false, "enable Vulkan validation layers")
		fps        = flag.Int("fps", 60, "run loop target FPS (0 disables pacing)")
		imagePath  = flag.String("image", "", "image file to show on the textured node")
		shaderDir  = flag.String("shaders", "shaders", "directory with compiled .spv shaders")
		profile    = flag.Bool("profile", false, "print run-loop profile on exit")
	)
	flag.Parse()

	cj.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	opts := []cj.Option{
		cj.WithAppName("cjdemo"),
		cj.WithTargetFPS(*fps),
		cj.WithShaderDir(*shaderDir),
	}
	if *validation {
		opts = append(opts, cj.WithValidation())
	}
	if *profile {
		opts = append(opts, cj.WithProfiling())
	}

	eng, err := cj.New(opts...)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	defer eng.Shutdown()

	win, err := eng.NewWindow(cj.WindowConfig{
		Title:     "cjdemo",
		Width:     800,
		Height:    600,
		Resizable: true,
	})
	if err != nil {
		log.Fatalf("window: %v", err)
	}

	graph := eng.NewGraph()
	defer graph.Destroy()
	if err := graph.AddColorNode("background"); err != nil {
		log.Fatalf("color node: %v", err)
	}

	if *imagePath != "" {
		tex, err := loadTexture(eng, *imagePath)
		if err != nil {
			log.Fatalf("texture: %v", err)
		}
		// Shutdown releases the texture after the device goes idle.

		if err := graph.BindTexture(cj.TextureBindingName, tex); err != nil {
			log.Fatalf("bind texture: %v", err)
		}
		if err := graph.AddTexturedNode("picture"); err != nil {
			log.Fatalf("textured node: %v", err)
		}
		if err := graph.AddBlurNode("blur"); err != nil {
			log.Fatalf("blur node: %v", err)
		}
		if err := graph.SetInt32(cj.ParamBlurIntensity, 40); err != nil {
			log.Fatalf("set blur intensity: %v", err)
		}
	}

	// Nodes execute in reverse insertion order, so the background fill
	// lands last; tint it down so the blur output stays visible.
	eng.SetColor(0.2, 0.2, 0.3, 1.0)
	win.AttachGraph(graph)

	const keyEscape = 256
	win.OnKey(func(w *cj.Window, ev cj.KeyEvent) {
		if ev.Key == keyEscape && ev.Pressed {
			w.Close()
		}
	})

	if err := eng.Run(); err != nil {
		log.Fatalf("run: %v", err)
	}
	if *profile {
		if p := eng.Profile(); p != nil {
			log.Printf("profile:\n%s", p)
		}
	}
}

func loadTexture(eng *cj.Engine, path string) (cj.Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return cj.Handle{}, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return cj.Handle{}, err
	}
	bounds := img.Bounds()
	return eng.CreateTexture(cj.TextureDesc{
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Pixels: img,
	})
}
