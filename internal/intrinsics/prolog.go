package intrinsics

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/standardbeagle/natvis-engine/internal/cppsyntax"
	"github.com/standardbeagle/natvis-engine/internal/hostapi"
	"github.com/standardbeagle/natvis-engine/internal/model"
	"github.com/standardbeagle/natvis-engine/internal/nverrors"
)

// Scope is the current (global, type) intrinsics pair plus the wildcard
// captures in effect, installed before evaluating anything against a
// dispatched value and uninstalled afterwards — the "current scope"
// the Python cache stores in class-level globals.
type Scope struct {
	Global     *model.IntrinsicsScope
	Type       *model.IntrinsicsScope
	Wildcards  []string
}

// ScopeGuard pushes a new Scope onto PrologCache and restores the prior
// one on Pop, matching the push/rollback discipline spec.md §9 calls out
// for every intrinsic-scope install: every entry has exactly one exit,
// success or error, that restores what came before.
type ScopeGuard struct {
	cache    *PrologCache
	previous Scope
}

// Push installs scope as current and returns a guard whose Pop restores
// whatever scope was active before this call.
func (pc *PrologCache) Push(scope Scope) *ScopeGuard {
	pc.mu.Lock()
	previous := pc.current
	pc.current = scope
	pc.mu.Unlock()
	return &ScopeGuard{cache: pc, previous: previous}
}

// Pop restores the scope active before the matching Push. Safe to call
// more than once; only the first call has an effect.
func (g *ScopeGuard) Pop() {
	if g == nil || g.cache == nil {
		return
	}
	g.cache.mu.Lock()
	g.cache.current = g.previous
	g.cache.mu.Unlock()
	g.cache = nil
}

// PrologCache builds and caches the intrinsics prolog for a value's
// (module, type), installing/reading the currently pushed Scope.
type PrologCache struct {
	cache *Cache
	group singleflight.Group

	mu      sync.Mutex
	current Scope
}

func NewPrologCache(cache *Cache) *PrologCache {
	return &PrologCache{cache: cache}
}

func buildPrologFromList(intrinsics []*model.TypeVizIntrinsic) string {
	parts := make([]string, len(intrinsics))
	for i, it := range intrinsics {
		parts[i] = it.DefinitionCode()
	}
	return strings.Join(parts, "\n")
}

func (pc *PrologCache) fillFromScope(ctx context.Context, evaluator hostapi.ExpressionEvaluator, val hostapi.Value, scope *model.IntrinsicsScope, skipUnused bool, result *[]*model.TypeVizIntrinsic, wildcards []string) error {
	if scope == nil {
		return nil
	}
	for _, intrinsic := range scope.SortedList {
		if skipUnused && !intrinsic.IsUsed {
			continue
		}
		dependenciesProlog := buildPrologFromList(*result)
		checkCode := intrinsic.ValidateExpression(dependenciesProlog)
		if checkCode == "" {
			continue
		}
		code, _ := cppsyntax.ResolveWildcards(checkCode+"; 1", wildcards)
		if !evaluator.ValidateCompiles(ctx, code) {
			if intrinsic.Optional {
				continue
			}
			return nverrors.NewEvaluateError(code, fmt.Errorf("intrinsic %q failed to compile", intrinsic.Name)).
				WithType(val.Type().Name())
		}

		replaced := false
		for i, item := range *result {
			if item.Name == intrinsic.Name {
				(*result)[i] = intrinsic
				replaced = true
			}
		}
		if !replaced {
			*result = append(*result, intrinsic)
		}
	}
	return nil
}

func (pc *PrologCache) prepareProlog(ctx context.Context, evaluator hostapi.ExpressionEvaluator, val hostapi.Value, scope Scope) (string, error) {
	var typeIntrinsics []*model.TypeVizIntrinsic
	if err := pc.fillFromScope(ctx, evaluator, val, scope.Global, true, &typeIntrinsics, scope.Wildcards); err != nil {
		return "", err
	}
	if err := pc.fillFromScope(ctx, evaluator, val, scope.Type, false, &typeIntrinsics, scope.Wildcards); err != nil {
		return "", err
	}
	return buildPrologFromList(typeIntrinsics), nil
}

// AddIntrinsicsProlog prepends the cached (or freshly-built) intrinsics
// prolog for val's (modulePath, type name) to expression, under the
// scope currently installed via Push. If neither the global nor the
// type scope has any intrinsics, expression is returned unchanged.
func (pc *PrologCache) AddIntrinsicsProlog(ctx context.Context, evaluator hostapi.ExpressionEvaluator, pid ProcessID, modulePath string, val hostapi.Value, expression string) (string, error) {
	pc.mu.Lock()
	scope := pc.current
	pc.mu.Unlock()

	hasGlobal := scope.Global != nil && len(scope.Global.SortedList) > 0
	hasType := scope.Type != nil && len(scope.Type.SortedList) > 0
	if !hasGlobal && !hasType {
		return expression, nil
	}

	typeName := val.Type().Name()
	if cached, ok := pc.cache.Get(pid, modulePath, typeName); ok {
		if cached == "" {
			return expression, nil
		}
		return cached + "\n\n" + expression, nil
	}

	sfKey := fmt.Sprintf("%d:%s:%s", pid, modulePath, typeName)
	v, err, _ := pc.group.Do(sfKey, func() (interface{}, error) {
		rawProlog, err := pc.prepareProlog(ctx, evaluator, val, scope)
		if err != nil {
			return "", err
		}
		resolved, _ := cppsyntax.ResolveWildcards(rawProlog, scope.Wildcards)
		pc.cache.Set(pid, modulePath, typeName, resolved)
		return resolved, nil
	})
	if err != nil {
		return "", err
	}
	prolog := v.(string)
	if prolog == "" {
		return expression, nil
	}
	return prolog + "\n\n" + expression, nil
}
