package emit

import "strconv"

// SlotClass selects the frame region a variable lives in.
type SlotClass uint8

const (
	// SlotInt holds loop counters and lengths.
	SlotInt SlotClass = iota
	// SlotValue holds decoded member values awaiting construction.
	SlotValue
)

// Var is a routine-local variable bound to a frame slot.
type Var struct {
	Name  string
	Slot  int
	Class SlotClass
}

// Scope is the block-structured variable table of one routine. Names are
// unique among live variables; slots are reused once the block that
// declared them closes.
type Scope struct {
	live    map[string]int
	blocks  [][]Var
	depth   [2]int
	max     [2]int
	compact bool
}

// NewScope creates a scope with one open block. In compact mode every
// variable is named "_".
func NewScope(compact bool) *Scope {
	return &Scope{
		live:    make(map[string]int),
		blocks:  [][]Var{nil},
		compact: compact,
	}
}

// Push opens a nested block.
func (s *Scope) Push() {
	s.blocks = append(s.blocks, nil)
}

// Pop closes the innermost block and releases its variables.
func (s *Scope) Pop() {
	if len(s.blocks) == 0 {
		return
	}
	top := s.blocks[len(s.blocks)-1]
	s.blocks = s.blocks[:len(s.blocks)-1]
	for _, v := range top {
		s.depth[v.Class]--
		if s.compact {
			continue
		}
		if s.live[v.Name]--; s.live[v.Name] <= 0 {
			delete(s.live, v.Name)
		}
	}
}

// Declare creates a variable in the innermost block.
func (s *Scope) Declare(base string, class SlotClass) Var {
	v := Var{Name: s.name(base), Slot: s.depth[class], Class: class}
	s.depth[class]++
	if s.depth[class] > s.max[class] {
		s.max[class] = s.depth[class]
	}
	if len(s.blocks) == 0 {
		s.blocks = append(s.blocks, nil)
	}
	s.blocks[len(s.blocks)-1] = append(s.blocks[len(s.blocks)-1], v)
	return v
}

func (s *Scope) name(base string) string {
	if s.compact {
		return "_"
	}
	name := base
	for n := 1; s.live[name] > 0; n++ {
		name = base + strconv.Itoa(n)
	}
	s.live[name]++
	return name
}

// Size returns the number of slots of class a frame must provide.
func (s *Scope) Size(class SlotClass) int {
	return s.max[class]
}
