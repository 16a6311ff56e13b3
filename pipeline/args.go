// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pipeline

// Arg is one named command-line option. A switch has no values; an option
// with values renders as the flag followed by each value as its own argv
// element, so values never need shell quoting.
type Arg struct {
	Flag   string
	Values []string
}

// Args is an ordered list of options. The builder methods append and return
// the updated list:
//
//	var a Args
//	a = a.Switch("--realTimeLogging").Set("--chroms", "17")
type Args []Arg

// Switch appends a flag without a value.
func (a Args) Switch(flag string) Args {
	return append(a, Arg{Flag: flag})
}

// SwitchIf appends a flag without a value if cond holds.
func (a Args) SwitchIf(cond bool, flag string) Args {
	if !cond {
		return a
	}
	return a.Switch(flag)
}

// Set appends a flag with one or more values.
func (a Args) Set(flag string, values ...string) Args {
	return append(a, Arg{Flag: flag, Values: values})
}

// SetIf appends a flag with a single value if the value is non-empty.
func (a Args) SetIf(flag, value string) Args {
	if value == "" {
		return a
	}
	return a.Set(flag, value)
}

// Raw appends already-split arguments verbatim, as a sequence of value-less
// records. It is used for free-form per-scenario options.
func (a Args) Raw(argv ...string) Args {
	for _, s := range argv {
		a = append(a, Arg{Flag: s})
	}
	return a
}

// Has reports whether flag appears in the list.
func (a Args) Has(flag string) bool {
	for _, arg := range a {
		if arg.Flag == flag {
			return true
		}
	}
	return false
}

// Values returns the values of the first occurrence of flag.
func (a Args) Values(flag string) ([]string, bool) {
	for _, arg := range a {
		if arg.Flag == flag {
			return arg.Values, true
		}
	}
	return nil, false
}

// Strings renders the list as argv elements.
func (a Args) Strings() []string {
	var argv []string
	for _, arg := range a {
		argv = append(argv, arg.Flag)
		argv = append(argv, arg.Values...)
	}
	return argv
}
