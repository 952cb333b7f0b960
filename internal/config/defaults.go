package config

import "time"

const (
	// NotebookExt is appended to a chapter id to locate its notebook.
	NotebookExt = ".ipynb"
	// HTMLExt is appended to a chapter id to name its page.
	HTMLExt = ".html"
)

// BookChapters is the canonical chapter list of the Riemann problems book.
var BookChapters = []string{
	"Preface", "Index", "Introduction", "Advection", "Acoustics",
	"Traffic_flow", "Shallow_water", "Shallow_tracer", "Euler_equations",
	"Approximate_solvers", "Euler_approximate_solvers",
	"Traffic_variable_speed", "Nonlinear_elasticity",
	"Euler_equations_TammannEOS", "Nonconvex_scalar", "Pressureless_flow",
	"Kitchen_sink_problem",
}

// Default returns the configuration of the published book.
func Default() *Config {
	return &Config{
		Book: BookConfig{
			Chapters: append([]string(nil), BookChapters...),
			Index:    "Index",
		},
		Source: SourceConfig{
			Dir:    ".",
			Branch: "master",
		},
		Output: OutputConfig{
			Directory:   "build_html",
			RemoveStale: true,
		},
		Assets: []Asset{
			{Path: "exact_solvers", Mode: AssetDir},
			{Path: "utils", Mode: AssetDir},
			{Path: "figures", Mode: AssetDir},
			{Path: "custom.css", Mode: AssetFile},
			{Path: "riemann.html", Mode: AssetFile},     // bibliography
			{Path: "riemann_bib.html", Mode: AssetFile}, // bibtex version
		},
		Exporter: ExporterConfig{
			Spec:       "Calebs97/riemann_book/master",
			Stylesheet: "custom.css",
		},
		Execution: ExecutionConfig{
			Enabled: true,
			Binary:  "jupyter",
			Kernel:  "python2",
			Timeout: 60 * time.Second,
		},
		Build: BuildConfig{
			Workers: 1,
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}
}
