//----------------------------------------------------------------------
// This file is part of wifimgr.
// Copyright (C) 2024-present Bernd Fix   >Y<
//
// wifimgr is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// wifimgr is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package wifimgr

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"git.sr.ht/~moody/ninep"
)

// Error messages
var (
	errNoRoot = errors.New("no root directory")
	errNoFile = errors.New("no such file or directory")
	errNoDir  = errors.New("not a directory")
	errNoAbs  = errors.New("no absolute path")
	errExists = errors.New("file exists")
)

//----------------------------------------------------------------------

// Entry in the filesystem
type Entry struct {
	ref      *ninep.Dir        // 9p reference
	children map[string]*Entry // list of children (for folders) or nil
	file     File              // file implementation or nil (for folders)
}

// IsDir returns true if entry is a directory
func (e *Entry) IsDir() bool {
	return e.children != nil
}

// Name of the entry
func (e *Entry) Name() string {
	return e.ref.Name
}

// Read the content of a file entry.
func (e *Entry) Read() ([]byte, error) {
	if e.file == nil {
		return nil, errNoFile
	}
	return e.file.Read()
}

// NewFile creates a file entry for the filesystem.
func NewFile(name, user, group string, perm uint32, impl File) *Entry {
	return newEntry(name, user, group, perm, impl)
}

// NewDir creates a directory entry for the filesystem.
func NewDir(name, user, group string, perm uint32) *Entry {
	return newEntry(name, user, group, perm, nil)
}

// Create a new entry in the filesystem.
// If impl is nil, the entry represents a directory; otherwise a file.
// The identifier is assigned when the entry is added to a namespace.
func newEntry(name, user, group string, perm uint32, impl File) *Entry {
	e := new(Entry)
	kind := ninep.QTFile
	if impl == nil {
		kind = ninep.QTDir
		e.children = make(map[string]*Entry)
		perm |= ninep.DMDir
	} else {
		e.file = impl
	}
	e.ref = &ninep.Dir{
		Qid: ninep.Qid{
			Vers: 0,
			Type: byte(kind),
		},
		Name: name,
		Mode: perm,
		Uid:  user,
		Gid:  group,
		Muid: user,
	}
	return e
}

//----------------------------------------------------------------------

// Namespace is a synthetic file system.
type Namespace struct {
	ninep.NopFS                   // use default handlers where needed
	dict        map[uint64]*Entry // map Qid.Path to filesystem entry
	user, group string            // owner of new entries
	nextId      uint64            // next identifier (Qid.Path)
}

// NewNamespace creates a new filesystem (with root directory) for the given
// user/group with the specified permissions.
func NewNamespace(user, group string, perm uint32) *Namespace {
	ns := new(Namespace)
	ns.dict = make(map[uint64]*Entry)
	ns.user, ns.group = user, group
	e := NewDir("/", user, group, perm)
	e.ref.Path = ns.newId()
	ns.dict[e.ref.Path] = e
	return ns
}

// get next identifier for an entry.
func (ns *Namespace) newId() uint64 {
	id := ns.nextId
	ns.nextId++
	return id
}

// Root returns the entry of the root directory
func (ns *Namespace) Root() *Entry {
	return ns.dict[0]
}

// Get entry with given path
func (ns *Namespace) Get(path string) (*Entry, error) {
	if len(path) == 0 || path[0] != '/' {
		return nil, errNoAbs
	}
	curr := ns.Root()
	for _, label := range strings.Split(path[1:], "/") {
		if len(label) == 0 {
			continue
		}
		if curr.children == nil {
			return nil, errNoDir
		}
		qid := ns.Walk(&curr.ref.Qid, label)
		if qid == nil {
			return nil, errNoFile
		}
		e, ok := ns.dict[qid.Path]
		if !ok {
			return nil, errNoFile
		}
		curr = e
	}
	return curr, nil
}

// AddChild to parent entry. Parent must be a directory.
func (ns *Namespace) AddChild(parent, child *Entry) error {
	if parent.children == nil {
		return errNoDir
	}
	if _, ok := parent.children[child.ref.Name]; ok {
		return errExists
	}
	child.ref.Path = ns.newId()
	parent.children[child.ref.Name] = child
	ns.dict[child.ref.Path] = child
	return nil
}

// MkDir creates a directory at the given absolute path.
func (ns *Namespace) MkDir(p string, perm uint32) (*Entry, error) {
	return ns.mk(p, NewDir(path.Base(p), ns.user, ns.group, perm))
}

// MkFile creates a file at the given absolute path.
func (ns *Namespace) MkFile(p string, perm uint32, impl File) (*Entry, error) {
	return ns.mk(p, NewFile(path.Base(p), ns.user, ns.group, perm, impl))
}

// add an entry below the parent directory of p
func (ns *Namespace) mk(p string, e *Entry) (*Entry, error) {
	parent, err := ns.Get(path.Dir(p))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	if err = ns.AddChild(parent, e); err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return e, nil
}

// Serve the 9p protocol for the given listen string
func (ns *Namespace) Serve(listen string) error {
	srv := ninep.NewSrv(func() ninep.FS { return ns })
	return srv.ListenAndServe(listen)
}

// ninep FS implementation

// Attach to 9p session
func (ns *Namespace) Attach(t *ninep.Tattach) {
	if e, ok := ns.dict[0]; ok {
		t.Respond(&e.ref.Qid)
	} else {
		t.Err(errNoRoot)
	}
}

// Walk to child entry with name "next".
func (ns *Namespace) Walk(cur *ninep.Qid, next string) *ninep.Qid {
	e, ok := ns.dict[cur.Path]
	if !ok {
		return nil
	}
	if c, ok := e.children[next]; ok {
		return &c.ref.Qid
	}
	return nil
}

// Open entry for file operation
func (ns *Namespace) Open(t *ninep.Topen, q *ninep.Qid) {
	t.Respond(q, 8192)
}

// Read from entry. Either return the content of a file
// or the listing from a directory.
func (ns *Namespace) Read(t *ninep.Tread, q *ninep.Qid) {
	e, ok := ns.dict[q.Path]
	if !ok {
		t.Err(errNoFile)
		return
	}
	if e.children != nil {
		var kids []ninep.Dir
		for _, c := range e.children {
			kids = append(kids, *c.ref)
		}
		ninep.ReadDir(t, kids)
		return
	}
	data, err := e.file.Read()
	if err != nil {
		t.Err(err)
	} else {
		ninep.ReadBuf(t, data)
	}
}

// Stat returns information for a filesytem entry.
func (ns *Namespace) Stat(t *ninep.Tstat, q *ninep.Qid) {
	e, ok := ns.dict[q.Path]
	if !ok {
		t.Err(errNoFile)
	} else {
		t.Respond(e.ref)
	}
}

//----------------------------------------------------------------------

// NewStatusNamespace creates a read-only namespace showing the state
// of a manager below "/wifi".
func NewStatusNamespace(m *Manager, user, group string) (*Namespace, error) {
	ns := NewNamespace(user, group, 0555)
	if _, err := ns.MkDir("/wifi", 0555); err != nil {
		return nil, err
	}
	files := []struct {
		name string
		impl File
	}{
		{"mode", NewTextFile(m.Mode().String() + "\n")},
		{"mac", NewTextFile(m.MAC() + "\n")},
		{"connected", NewValueFile(m.IsConnected)},
		{"station", NewValueFile(m.StationState)},
		{"mesh", NewValueFile(m.MeshState)},
		{"ssid", NewValueFile(func() string { return m.StationConfig().SSID })},
		{"ip", NewValueFile(func() string {
			if ip := m.IPInfo().IP; ip.IsValid() {
				return ip.String()
			}
			return ""
		})},
		{"error", NewValueFile(func() string {
			if err := m.Err(); err != nil {
				return err.Error()
			}
			return ""
		})},
	}
	if m.Mode().IsMesh() {
		files = append(files, []struct {
			name string
			impl File
		}{
			{"broadcast", NewValueFile(m.MeshSSID)},
			{"uplink", NewValueFile(m.Uplink)},
			{"group", NewTextFile(m.Group() + "\n")},
			{"peers", NewFuncFile(func() ([]byte, error) {
				var buf []byte
				for _, p := range m.Peers() {
					buf = fmt.Appendf(buf, "%s %s\n", p.MAC, p.IP)
				}
				return buf, nil
			})},
		}...)
	}
	for _, f := range files {
		if _, err := ns.MkFile("/wifi/"+f.name, 0444, f.impl); err != nil {
			return nil, err
		}
	}
	return ns, nil
}
