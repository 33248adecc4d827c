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

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	liberr "github.com/nabbar/golib/errors"
)

// Resolver holds the process wide naming state: the node name, the active
// namespace and the remap table. All outward operations of the node runtime
// resolve their target name through a Resolver.
//
// A Resolver is safe for concurrent use.
type Resolver interface {
	// NodeName returns the fully qualified node name.
	NodeName() string

	// Namespace returns the active namespace, always a global name.
	Namespace() string

	// Resolve resolves the given name against the active namespace and then
	// applies the remap table. Private names resolve against the node name.
	Resolve(name string) (string, liberr.Error)

	// ResolveIn behaves like Resolve but against the given namespace.
	ResolveIn(ns, name string) (string, liberr.Error)

	// ResolveRaw resolves the given name against the active namespace without
	// applying the remap table.
	ResolveRaw(name string) (string, liberr.Error)

	// Remap applies the remap table to an already resolved name. A name with
	// no entry is returned unchanged.
	Remap(name string) string

	// AddRemap resolves both sides against the active namespace and inserts
	// the entry into the remap table.
	AddRemap(from, to string) liberr.Error

	// Remaps returns a snapshot copy of the remap table.
	Remaps() map[string]string
}

type rsv struct {
	m sync.RWMutex
	n string // node name, global
	s string // namespace, global
	r map[string]string
}

// NewResolver builds a Resolver for the given node name and namespace. The
// node name is resolved against the namespace; an empty namespace means the
// root. The given remap entries are inserted after both sides are resolved.
func NewResolver(nodeName, namespace string, remaps map[string]string) (Resolver, liberr.Error) {
	if len(nodeName) == 0 {
		return nil, ErrorParamEmpty.Error(nil)
	} else if !Validate(nodeName) || IsPrivate(nodeName) {
		return nil, ErrorInvalidName.Error(fmt.Errorf("node name '%s'", nodeName))
	}

	if len(namespace) == 0 {
		namespace = Sep
	} else if !Validate(namespace) {
		return nil, ErrorInvalidNamespace.Error(fmt.Errorf("namespace '%s'", namespace))
	} else if !IsGlobal(namespace) {
		namespace = Clean(Sep + namespace)
	} else {
		namespace = Clean(namespace)
	}

	o := &rsv{
		m: sync.RWMutex{},
		s: namespace,
		r: make(map[string]string),
	}

	if IsGlobal(nodeName) {
		o.n = Clean(nodeName)
	} else {
		o.n = Append(namespace, nodeName)
	}

	for f, t := range remaps {
		if e := o.AddRemap(f, t); e != nil {
			return nil, e
		}
	}

	return o, nil
}

func (o *rsv) NodeName() string {
	return o.n
}

func (o *rsv) Namespace() string {
	return o.s
}

func (o *rsv) Resolve(name string) (string, liberr.Error) {
	if r, e := o.ResolveRaw(name); e != nil {
		return "", e
	} else {
		return o.Remap(r), nil
	}
}

func (o *rsv) ResolveIn(ns, name string) (string, liberr.Error) {
	if r, e := o.resolve(ns, name); e != nil {
		return "", e
	} else {
		return o.Remap(r), nil
	}
}

func (o *rsv) ResolveRaw(name string) (string, liberr.Error) {
	return o.resolve(o.s, name)
}

func (o *rsv) resolve(ns, name string) (string, liberr.Error) {
	if !Validate(name) {
		return "", ErrorInvalidName.Error(fmt.Errorf("name '%s'", name))
	}

	if len(name) == 0 {
		return ns, nil
	}

	if IsPrivate(name) {
		return Clean(o.n + Sep + strings.TrimPrefix(name, Priv)), nil
	}

	if IsGlobal(name) {
		return Clean(name), nil
	}

	return Append(ns, name), nil
}

func (o *rsv) Remap(name string) string {
	o.m.RLock()
	defer o.m.RUnlock()

	if r, k := o.r[name]; k {
		return r
	}

	return name
}

func (o *rsv) AddRemap(from, to string) liberr.Error {
	var (
		e liberr.Error
		f string
		t string
	)

	if len(from) == 0 || len(to) == 0 {
		return ErrorInvalidRemap.Error(ErrorParamEmpty.Error(nil))
	}

	if f, e = o.ResolveRaw(from); e != nil {
		return ErrorInvalidRemap.Error(e)
	}

	if t, e = o.ResolveRaw(to); e != nil {
		return ErrorInvalidRemap.Error(e)
	}

	o.m.Lock()
	defer o.m.Unlock()

	o.r[f] = t
	return nil
}

func (o *rsv) Remaps() map[string]string {
	o.m.RLock()
	defer o.m.RUnlock()

	var k = make([]string, 0, len(o.r))
	for f := range o.r {
		k = append(k, f)
	}

	sort.Strings(k)

	var r = make(map[string]string, len(o.r))
	for _, f := range k {
		r[f] = o.r[f]
	}

	return r
}
