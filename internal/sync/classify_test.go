package sync

import (
	"errors"
	"testing"
)

func TestIsPermanent(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("connection reset"), false},
		{errors.New("401 Unauthorized"), true},
		{errors.New("403 forbidden"), true},
		{errors.New("400 Bad Request"), true},
		{errors.New("404 not found"), true},
		{errors.New("409 Conflict"), true},
	}
	for _, c := range cases {
		if got := isPermanent(c.err); got != c.want {
			t.Errorf("isPermanent(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
