/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package names implements the graph-name layer of the compute graph: name
// validation, cleaning, joining and resolution against a namespace, plus the
// remapping table built from invocation arguments.
//
// A graph name is one of:
//   - empty
//   - global, with a leading '/'
//   - relative, with a leading alphabetic character
//   - private, with a leading '~'
//
// After resolution a stored name is either empty or begins with '/', contains
// no '//' run and no trailing '/' except the bare root "/".
package names

import "strings"

const (
	// Sep is the hierarchy separator of graph names.
	Sep = "/"

	// Priv is the prefix of a private name, resolved against the node name.
	Priv = "~"
)

// Validate reports whether the given string is a well formed graph name.
// An empty name is valid. The first character must be alphabetic, '/' or '~';
// every following character must be alphanumeric, '/' or '_'.
func Validate(name string) bool {
	if len(name) == 0 {
		return true
	}

	for i, c := range name {
		if i == 0 {
			if !isAlpha(c) && c != '/' && c != '~' {
				return false
			}
		} else if !isAlpha(c) && !isNum(c) && c != '/' && c != '_' {
			return false
		}
	}

	return true
}

// Clean collapses any '//' run into a single '/' and strips a trailing '/'
// unless the name is the bare root.
func Clean(name string) string {
	for strings.Contains(name, Sep+Sep) {
		name = strings.ReplaceAll(name, Sep+Sep, Sep)
	}

	if len(name) > 1 && strings.HasSuffix(name, Sep) {
		name = strings.TrimSuffix(name, Sep)
	}

	return name
}

// Append joins the left name and the right name with a single separator and
// cleans the result.
func Append(left, right string) string {
	return Clean(left + Sep + right)
}

// Parent returns the namespace containing the given name: everything up to
// the last separator. The parent of a first level name is the root and the
// parent of the root or of an empty name is the empty string.
func Parent(name string) string {
	name = Clean(name)

	if len(name) == 0 || name == Sep {
		return ""
	}

	if i := strings.LastIndex(name, Sep); i > 0 {
		return name[:i]
	} else if i == 0 {
		return Sep
	}

	return ""
}

// IsGlobal reports whether the name is fully qualified.
func IsGlobal(name string) bool {
	return strings.HasPrefix(name, Sep)
}

// IsPrivate reports whether the name is private to the node.
func IsPrivate(name string) bool {
	return strings.HasPrefix(name, Priv)
}

func isAlpha(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNum(c rune) bool {
	return c >= '0' && c <= '9'
}
