package slab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type dirent struct {
	Name string
}

func TestGetPutReuse(t *testing.T) {
	a := New(func() *dirent { return &dirent{} }, func(d *dirent) { d.Name = "" }, 0)

	assert.Equal(t, 0, a.InUse())
	d1 := a.Get()
	d1.Name = "a"
	assert.Equal(t, 1, a.InUse())
	assert.Equal(t, 0, a.InPool())
	assert.Equal(t, 1, a.Alloced())

	a.Put(d1)
	assert.Equal(t, 0, a.InUse())
	assert.Equal(t, 1, a.InPool())
	assert.Equal(t, "", d1.Name)

	d2 := a.Get()
	assert.Same(t, d1, d2)
	assert.Equal(t, 1, a.Alloced(), "reused from pool, no new allocation")
}

func TestLimitCapsPool(t *testing.T) {
	a := New(func() *dirent { return &dirent{} }, nil, 1)
	d1 := a.Get()
	d2 := a.Get()
	a.Put(d1)
	a.Put(d2)
	assert.Equal(t, 1, a.InPool())
}
