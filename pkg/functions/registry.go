// Package functions provides the function-signature table consulted by the
// parser to validate function-call arity.
//
// Only the shape of each function is known here (its name and how many
// arguments it accepts). Implementations belong to the evaluator.
//
// # Example
//
//	reg := functions.Builtins()
//	_ = reg.Register(functions.Signature{Name: "greet", Arity: functions.Fixed(1)})
//	expr, err := parser.Compile("greet(name)", parser.WithFunctions(reg))
package functions

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/midbel/distance"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Arity is the argument-count contract of a function: either exactly Args
// arguments, or at least Args arguments when Variadic is set.
type Arity struct {
	Args     int
	Variadic bool
}

// Fixed returns an arity contract accepting exactly n arguments.
func Fixed(n int) Arity {
	return Arity{Args: n}
}

// AtLeast returns a variadic arity contract accepting n or more arguments.
func AtLeast(n int) Arity {
	return Arity{Args: n, Variadic: true}
}

// Accepts reports whether a call with n arguments satisfies the contract.
func (a Arity) Accepts(n int) bool {
	if a.Variadic {
		return n >= a.Args
	}
	return n == a.Args
}

// String returns "2" for fixed arities and ">=1" for variadic ones.
func (a Arity) String() string {
	if a.Variadic {
		return ">=" + strconv.Itoa(a.Args)
	}
	return strconv.Itoa(a.Args)
}

// Signature describes a function as the parser sees it.
type Signature struct {
	// Name is the function name as it appears inside expressions.
	Name string
	// Arity is the argument-count contract checked at parse time.
	Arity Arity
}

// Table is the lookup the parser performs for every function expression.
type Table interface {
	Lookup(name string) (Signature, bool)
}

// Suggester is implemented by tables able to propose close matches for an
// unknown function name.
type Suggester interface {
	Suggest(name string) []string
}

// Registry is a mutable, concurrency-safe signature table.
type Registry struct {
	mu   sync.RWMutex
	sigs map[string]Signature
}

// NewRegistry creates a registry holding the given signatures.
// Invalid signatures are skipped; use Register to observe the error.
func NewRegistry(sigs ...Signature) *Registry {
	r := &Registry{
		sigs: make(map[string]Signature, len(sigs)),
	}
	for _, s := range sigs {
		_ = r.Register(s)
	}
	return r
}

// Builtins returns a fresh registry holding the JMESPath built-in functions.
// The returned registry can be extended without affecting other callers.
func Builtins() *Registry {
	return NewRegistry(builtinSignatures...)
}

// Register adds or replaces a signature.
func (r *Registry) Register(sig Signature) error {
	if sig.Name == "" {
		return fmt.Errorf("function signature: empty name")
	}
	if sig.Arity.Args < 0 {
		return fmt.Errorf("function %s: negative argument count %d", sig.Name, sig.Arity.Args)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sigs[sig.Name] = sig
	return nil
}

// Lookup implements Table.
func (r *Registry) Lookup(name string) (Signature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sig, ok := r.sigs[name]
	return sig, ok
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sigs)
}

// Names returns the registered function names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := maps.Keys(r.sigs)
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Signatures returns every registered signature sorted by name.
func (r *Registry) Signatures() []Signature {
	r.mu.RLock()
	sigs := maps.Values(r.sigs)
	r.mu.RUnlock()
	slices.SortFunc(sigs, func(a, b Signature) bool {
		return a.Name < b.Name
	})
	return sigs
}

// Suggest implements Suggester using edit distance over registered names.
func (r *Registry) Suggest(name string) []string {
	return distance.Levenshtein(name, r.Names())
}

// builtinSignatures lists the JMESPath built-in functions.
var builtinSignatures = []Signature{
	{Name: "abs", Arity: Fixed(1)},
	{Name: "avg", Arity: Fixed(1)},
	{Name: "ceil", Arity: Fixed(1)},
	{Name: "contains", Arity: Fixed(2)},
	{Name: "ends_with", Arity: Fixed(2)},
	{Name: "floor", Arity: Fixed(1)},
	{Name: "join", Arity: Fixed(2)},
	{Name: "keys", Arity: Fixed(1)},
	{Name: "length", Arity: Fixed(1)},
	{Name: "map", Arity: Fixed(2)},
	{Name: "max", Arity: Fixed(1)},
	{Name: "max_by", Arity: Fixed(2)},
	{Name: "merge", Arity: AtLeast(1)},
	{Name: "min", Arity: Fixed(1)},
	{Name: "min_by", Arity: Fixed(2)},
	{Name: "not_null", Arity: AtLeast(1)},
	{Name: "reverse", Arity: Fixed(1)},
	{Name: "sort", Arity: Fixed(1)},
	{Name: "sort_by", Arity: Fixed(2)},
	{Name: "starts_with", Arity: Fixed(2)},
	{Name: "sum", Arity: Fixed(1)},
	{Name: "to_array", Arity: Fixed(1)},
	{Name: "to_number", Arity: Fixed(1)},
	{Name: "to_string", Arity: Fixed(1)},
	{Name: "type", Arity: Fixed(1)},
	{Name: "values", Arity: Fixed(1)},
}
