package capture

import (
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	pkgerrors "github.com/livp123/pktstream/pkg/errors"
)

// Filter is a compiled boolean expression over Record fields, e.g.
//
//	Protocol == "6" && SrcIP startsWith "10."
//
// A nil Filter accepts every record.
// Filter 是基于 Record 字段编译后的布尔表达式，nil 表示接受所有记录。
type Filter struct {
	source  string
	program *vm.Program
}

// NewFilter compiles src. An empty or blank src yields a nil Filter.
// NewFilter 编译表达式，空表达式返回 nil。
func NewFilter(src string) (*Filter, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}
	program, err := expr.Compile(src, expr.Env(Record{}), expr.AsBool())
	if err != nil {
		return nil, pkgerrors.NewFilterError(src, err)
	}
	return &Filter{source: src, program: program}, nil
}

// Match reports whether r passes the filter. Evaluation errors reject the record.
func (f *Filter) Match(r Record) bool {
	if f == nil {
		return true
	}
	out, err := expr.Run(f.program, r)
	if err != nil {
		return false
	}
	matched, ok := out.(bool)
	return ok && matched
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}
