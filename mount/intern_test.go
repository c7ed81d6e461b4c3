package mount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternReturnsSameInstance(t *testing.T) {
	in := NewInterner()

	a := New("sftp")
	a.Set("host", "h")

	b := New("sftp")
	b.Set("host", "h")

	ca := in.Intern(a)
	cb := in.Intern(b)

	assert.Same(t, ca, cb)
	assert.Equal(t, 1, in.Len())
}

func TestInternReleaseShrinksTable(t *testing.T) {
	in := NewInterner()

	a := New("sftp")
	ca := in.Intern(a)
	assert.Equal(t, 1, in.Len())

	b := New("sftp")
	cb := in.Intern(b)
	assert.Same(t, ca, cb)

	in.Release(ca)
	assert.Equal(t, 1, in.Len(), "second strong ref keeps the entry alive")

	in.Release(cb)
	assert.Equal(t, 0, in.Len(), "last release drops the entry")
}

func TestInternDistinctSpecsGetDistinctInstances(t *testing.T) {
	in := NewInterner()

	a := New("sftp")
	a.Set("host", "one")
	b := New("sftp")
	b.Set("host", "two")

	ca := in.Intern(a)
	cb := in.Intern(b)

	assert.NotSame(t, ca, cb)
	assert.Equal(t, 2, in.Len())
}
