package decompiler

import (
	"go.uber.org/zap"

	"github.com/wippyai/decompiler/cfg"
	"github.com/wippyai/decompiler/domain"
	"github.com/wippyai/decompiler/errors"
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/il"
	"github.com/wippyai/decompiler/passes"
	"github.com/wippyai/decompiler/reconstruct"
	"github.com/wippyai/decompiler/structure"
	"github.com/wippyai/decompiler/typeinfer"
	"github.com/wippyai/decompiler/types"
)

// Stage names reported to Config.OnStage. Each postprocessing pass is
// reported under its own name between StageStructure and StageTyped.
const (
	StageCFG       = "cfg"
	StagePrepare   = "prepare"
	StageIdioms    = "idioms"
	StageStructure = "structure"
	StageTyped     = "typeinfer"
)

// Stages returns every stage name in pipeline order.
func Stages() []string {
	out := []string{StageCFG, StagePrepare, StageIdioms, StageStructure}
	out = append(out, passes.Names()...)
	return append(out, StageTyped)
}

// Config holds configuration for a Decompiler.
type Config struct {
	// Passes names postprocessing passes to skip.
	Passes []string

	// Logger receives one debug entry per stage. Nil uses the package
	// logger.
	Logger *zap.Logger

	// OnStage is called with the method body after each stage. Graph
	// stages are rendered as a flat block of labels and gotos. The tree
	// must not be modified.
	OnStage func(stage string, root *hir.Block)

	// Registry overrides the opcode handlers used by reconstruction.
	Registry *reconstruct.Registry
}

// Decompiler runs the pipeline with a fixed configuration. It holds no
// per-method state and is safe to share between goroutines that use
// distinct domains.
type Decompiler struct {
	cfg    Config
	runner *passes.Runner
}

// New creates a decompiler. Unknown pass names are an error.
func New(c *Config) (*Decompiler, error) {
	if c == nil {
		c = &Config{}
	}
	runner, err := passes.NewRunner(c.Passes...)
	if err != nil {
		return nil, err
	}
	return &Decompiler{cfg: *c, runner: runner}, nil
}

// NewFromDomainConfig creates a decompiler and a domain from a loaded
// configuration file.
func NewFromDomainConfig(c *domain.Config, log *zap.Logger) (*Decompiler, *domain.Domain, error) {
	sem, err := c.ToSemantics()
	if err != nil {
		return nil, nil, err
	}
	dc, err := New(&Config{Passes: c.Passes.Disable, Logger: log})
	if err != nil {
		return nil, nil, err
	}
	return dc, domain.New(sem), nil
}

var defaultDecompiler = &Decompiler{}

// Decompile decompiles m in the current domain with the default
// configuration.
func Decompile(m *il.Method) (*hir.Lambda, error) {
	return defaultDecompiler.Decompile(m)
}

// DecompileIn decompiles m in d with the default configuration.
func DecompileIn(d *domain.Domain, m *il.Method) (*hir.Lambda, error) {
	return defaultDecompiler.DecompileIn(d, m)
}

// Decompile decompiles m in the current domain.
func (dc *Decompiler) Decompile(m *il.Method) (*hir.Lambda, error) {
	return dc.DecompileIn(Current(), m)
}

// DecompileIn decompiles m with d as the current domain. A tree already
// cached in d for the same method is returned as is. Failures leave d's
// caches without entries for the failed method.
func (dc *Decompiler) DecompileIn(d *domain.Domain, m *il.Method) (fn *hir.Lambda, err error) {
	if m == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "nil method")
	}
	if d == nil {
		d = Current()
	}
	restore := push(d)
	defer restore()
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*errors.Error)
			if !ok {
				panic(r)
			}
			fn, err = nil, e
		}
	}()

	key := m.Key()
	if cached, ok := d.Method(key); ok {
		dc.logger().Debug("method cache hit", zap.String("method", key))
		return cached, nil
	}

	fn, err = dc.run(d, m)
	if err != nil {
		dc.logger().Debug("decompilation failed", zap.String("method", key), zap.Error(err))
		return nil, err
	}
	d.StoreMethod(key, fn)
	return fn, nil
}

func (dc *Decompiler) logger() *zap.Logger {
	if dc.cfg.Logger != nil {
		return dc.cfg.Logger
	}
	return Logger()
}

func (dc *Decompiler) stage(name string, m *il.Method, root *hir.Block) {
	if ce := dc.logger().Check(zap.DebugLevel, "stage done"); ce != nil {
		ce.Write(
			zap.String("method", m.Name),
			zap.String("stage", name),
			zap.Int("statements", countStatements(root)))
	}
	if dc.cfg.OnStage != nil {
		dc.cfg.OnStage(name, root)
	}
}

func (dc *Decompiler) graphStage(name string, m *il.Method, g *cfg.Graph) {
	dc.logger().Debug("stage done",
		zap.String("method", m.Name),
		zap.String("stage", name),
		zap.Int("blocks", g.Len()))
	if dc.cfg.OnStage != nil {
		dc.cfg.OnStage(name, g.Tree())
	}
}

func (dc *Decompiler) run(d *domain.Domain, m *il.Method) (*hir.Lambda, error) {
	syms := reconstruct.NewSymbols(m, d.Semantics.LoadDebugInfo)
	g, err := cfg.Build(m, syms, dc.cfg.Registry)
	if err != nil {
		return nil, err
	}
	dc.graphStage(StageCFG, m, g)

	if err := structure.Prepare(g); err != nil {
		return nil, err
	}
	dc.graphStage(StagePrepare, m, g)

	cfg.RunIdioms(g)
	dc.graphStage(StageIdioms, m, g)

	root, err := structure.Structure(g)
	if err != nil {
		return nil, err
	}
	dc.stage(StageStructure, m, root)

	var runner passes.Runner
	if dc.runner != nil {
		runner = *dc.runner
	}
	runner.OnPass = func(name string, root *hir.Block) { dc.stage(name, m, root) }
	pc := &passes.Context{Domain: d, Returns: m.Returns}
	if err := runner.Run(pc, root); err != nil {
		d.Forget(root)
		return nil, err
	}

	fn := hir.NewLambda(m.Name, signature(m), syms.Params, root)
	if _, err := typeinfer.Infer(d, fn); err != nil {
		d.Forget(fn)
		return nil, err
	}
	dc.stage(StageTyped, m, root)
	return fn, nil
}

func signature(m *il.Method) *types.Func {
	sig := &types.Func{}
	if !m.Static {
		var recv types.Type = types.Typ[types.Object]
		if m.DeclaringType != nil {
			recv = types.Receiver(m.DeclaringType)
		}
		sig.Params = append(sig.Params, recv)
	}
	for _, p := range m.Params {
		sig.Params = append(sig.Params, p.Type)
	}
	if !types.IsVoid(m.Returns) {
		sig.Result = m.Returns
	}
	return sig
}

func countStatements(root hir.Node) int {
	n := 0
	hir.Walk(root, func(x hir.Node) bool {
		switch x.Kind() {
		case hir.KindBlock, hir.KindCatch:
		default:
			if p := x.Parent(); p != nil && p.Kind() == hir.KindBlock {
				n++
			}
		}
		return true
	})
	return n
}
