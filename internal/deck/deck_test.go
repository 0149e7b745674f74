package deck

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeSlides() []Slide {
	return []Slide{
		{ID: "intro", Offset: 0},
		{ID: "middle", Offset: 1000},
		{ID: "end", Offset: 2000},
	}
}

// recorder collects activations.
type recorder struct {
	ids []string
	err error
}

func (r *recorder) activate(_ int, s Slide) error {
	r.ids = append(r.ids, s.ID)
	return r.err
}

func TestComputeIndexFromScroll(t *testing.T) {
	slides := threeSlides()

	tests := []struct {
		name   string
		scroll float64
		want   int
	}{
		{"top of page", 0, 0},
		{"intro trigger still ahead", 700, 0},
		{"intro crossed", 701, 1},
		{"middle still ahead", 1700, 1},
		{"middle crossed", 1701, 2},
		{"end crossed", 2701, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeIndexFromScroll(tt.scroll, 1000, slides))
		})
	}
}

func TestComputeIndexFromScroll_Range(t *testing.T) {
	slides := threeSlides()
	for scroll := -5000.0; scroll <= 10000; scroll += 37 {
		i := ComputeIndexFromScroll(scroll, 800, slides)
		assert.GreaterOrEqual(t, i, 0)
		assert.LessOrEqual(t, i, len(slides))
	}
	assert.Equal(t, 0, ComputeIndexFromScroll(0, 800, nil))
}

func TestOnScroll_ActivatesOnChangeOnly(t *testing.T) {
	rec := &recorder{}
	c := NewController(threeSlides(), rec.activate)

	changed, err := c.OnScroll(100, 1000)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, rec.ids)

	changed, err = c.OnScroll(1200, 1000)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, c.Current())

	changed, _ = c.OnScroll(1300, 1000)
	assert.False(t, changed)
	assert.Equal(t, []string{"middle"}, rec.ids)
}

func TestOnScroll_PastLastSlideKeepsCurrent(t *testing.T) {
	rec := &recorder{}
	c := NewController(threeSlides(), rec.activate)

	_, err := c.OnScroll(1800, 1000)
	require.NoError(t, err)
	require.Equal(t, 2, c.Current())

	changed, err := c.OnScroll(9000, 1000)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2, c.Current())
	assert.Equal(t, []string{"end"}, rec.ids)
}

func TestNextPrevious_Wraparound(t *testing.T) {
	rec := &recorder{}
	c := NewController(threeSlides(), rec.activate)

	require.NoError(t, c.Previous())
	assert.Equal(t, 2, c.Current())

	require.NoError(t, c.Next())
	assert.Equal(t, 0, c.Current())

	require.NoError(t, c.Next())
	assert.Equal(t, 1, c.Current())

	assert.Equal(t, []string{"end", "intro", "middle"}, rec.ids)
}

func TestNextPrevious_Empty(t *testing.T) {
	c := NewController(nil, nil)
	assert.NoError(t, c.Next())
	assert.NoError(t, c.Previous())
	assert.NoError(t, c.Sync())
	assert.Equal(t, 0, c.Current())
}

func TestSync_Visibility(t *testing.T) {
	c := NewController(threeSlides(), nil)
	require.NoError(t, c.Goto(1))

	slides := c.Slides()
	assert.False(t, slides[0].Visible)
	assert.True(t, slides[1].Visible)
	assert.False(t, slides[2].Visible)
}

func TestGoto_OutOfRange(t *testing.T) {
	c := NewController(threeSlides(), nil)
	err := c.Goto(3)
	assert.ErrorIs(t, err, ErrSlideOutOfRange)
	assert.Equal(t, 0, c.Current())

	assert.ErrorIs(t, c.Goto(-1), ErrSlideOutOfRange)
}

func TestActivationErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	rec := &recorder{err: boom}
	c := NewController(threeSlides(), rec.activate)

	assert.ErrorIs(t, c.Next(), boom)
	_, err := c.OnScroll(1800, 1000)
	assert.ErrorIs(t, err, boom)
}

func TestSetOffsets(t *testing.T) {
	c := NewController(threeSlides(), nil)
	require.NoError(t, c.SetOffsets([]float64{0, 500, 900}))
	assert.Equal(t, 500.0, c.Slides()[1].Offset)

	assert.ErrorIs(t, c.SetOffsets([]float64{1}), ErrOffsetCount)

	i, ok := c.Index("end")
	assert.True(t, ok)
	assert.Equal(t, 2, i)
	_, ok = c.Index("nope")
	assert.False(t, ok)
}
