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

package names

import "strings"

const (
	remapSep = ":="

	// KeyName overrides the node name.
	KeyName = "__name"

	// KeyNamespace overrides the namespace.
	KeyNamespace = "__ns"

	// KeyIP overrides the advertised IP.
	KeyIP = "__ip"

	// KeyHostname overrides the advertised hostname.
	KeyHostname = "__hostname"

	// KeyMaster overrides the directory server URI.
	KeyMaster = "__master"
)

// Remapping is the parsed form of the invocation arguments: the remap table
// plus the special overrides. Empty override fields mean no override.
type Remapping struct {
	Name      string
	Namespace string
	IP        string
	Hostname  string
	Master    string
	Remaps    map[string]string
}

// ParseArgs extracts every 'name:=value' argument. The special double
// underscore keys become overrides; any other entry whose left side begins
// with '_' is dropped; the remainder feed the remap table unresolved (entries
// are resolved when the Resolver is built).
func ParseArgs(args []string) Remapping {
	var res = Remapping{
		Remaps: make(map[string]string),
	}

	for _, a := range args {
		i := strings.Index(a, remapSep)
		if i < 1 {
			continue
		}

		var (
			k = a[:i]
			v = a[i+len(remapSep):]
		)

		if len(v) == 0 {
			continue
		}

		switch k {
		case KeyName:
			res.Name = v
		case KeyNamespace:
			res.Namespace = v
		case KeyIP:
			res.IP = v
		case KeyHostname:
			res.Hostname = v
		case KeyMaster:
			res.Master = v
		default:
			// a single leading underscore marks a private parameter, not a remap
			if strings.HasPrefix(k, "_") {
				continue
			}
			res.Remaps[k] = v
		}
	}

	return res
}
