package cj

// Option configures an Engine during creation.
//
//	eng, err := cj.New(cj.WithTargetFPS(60), cj.WithProfiling())
type Option func(*engineOptions)

type engineOptions struct {
	deviceName       string
	device           Device
	capacity         int
	targetFPS        int
	runWhenMinimized bool
	profiling        bool
	cfg              DeviceConfig
}

func defaultOptions() engineOptions {
	return engineOptions{
		deviceName: "vulkan",
		capacity:   1024,
		cfg: DeviceConfig{
			AppName:     "cj",
			DeviceIndex: -1,
		},
	}
}

// WithDevice injects a Device directly, bypassing the backend registry.
// Used by tests and by hosts that manage the device themselves.
func WithDevice(d Device) Option {
	return func(o *engineOptions) { o.device = d }
}

// WithBackend selects a registered device backend by name.
func WithBackend(name string) Option {
	return func(o *engineOptions) { o.deviceName = name }
}

// WithDeviceIndex forces selection of a specific physical device instead of
// the backend's scoring heuristic.
func WithDeviceIndex(i int) Option {
	return func(o *engineOptions) { o.cfg.DeviceIndex = i }
}

// WithTableCapacity sets the per-kind resource table capacity.
func WithTableCapacity(n int) Option {
	return func(o *engineOptions) { o.capacity = n }
}

// WithTargetFPS enables fixed-FPS pacing of the run loop. Zero disables.
func WithTargetFPS(fps int) Option {
	return func(o *engineOptions) { o.targetFPS = fps }
}

// WithRunWhenMinimized keeps ticking even when every window is minimized.
func WithRunWhenMinimized(run bool) Option {
	return func(o *engineOptions) { o.runWhenMinimized = run }
}

// WithProfiling enables per-bucket run-loop instrumentation.
func WithProfiling() Option {
	return func(o *engineOptions) { o.profiling = true }
}

// WithValidation enables the graphics API's validation layers; their
// diagnostics go to the package logger.
func WithValidation() Option {
	return func(o *engineOptions) { o.cfg.EnableValidation = true }
}

// WithAppName sets the application name reported to the graphics API.
func WithAppName(name string) Option {
	return func(o *engineOptions) { o.cfg.AppName = name }
}

// WithShaderDir overrides where the backend loads compiled shaders from.
func WithShaderDir(dir string) Option {
	return func(o *engineOptions) { o.cfg.ShaderDir = dir }
}
