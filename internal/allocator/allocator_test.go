package allocator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/errcode"
	"github.com/specialistvlad/mcugraph/internal/resolver"
	"github.com/specialistvlad/mcugraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandler claims the usart irq handler and records the indexes it saw.
type fakeHandler struct {
	Base
	info    Info
	indexes []int
	sanity  error
	vocab   func(dev *config.Device) string
}

func (f *fakeHandler) Info() Info { return f.info }

func (f *fakeHandler) SanityChecks(_ context.Context, r *resolver.Resolver, dev *config.Device) error {
	return f.sanity
}

func (f *fakeHandler) Allocate(_ context.Context, r *resolver.Resolver, dev *config.Device, index int) (*Allocation, error) {
	f.indexes = append(f.indexes, index)
	usart, err := r.Role(dev.Requires, "usart", catalog.TypeUSART)
	if err != nil {
		return nil, err
	}
	irq, err := r.GetRequiredResource(usart, "irq_handler", catalog.TypeIRQHandler)
	if err != nil {
		return nil, err
	}
	a := NewAllocation()
	a.Descriptor.Add("usart", usart).Add("index", index)
	a.Claim("irq", catalog.TypeIRQHandler, irq)
	a.AddISR(irq, "FAKE_COMMON_IRQ_HANDLER", index)
	if index > 0 {
		a.Warn("device %s is not the first one", dev.Name)
	}
	if f.vocab != nil {
		a.Vocabulary.Set(f.vocab(dev), int64(index))
	}
	return a, nil
}

func group(t *testing.T, body string) *config.Group {
	t.Helper()
	doc := testutil.Document(t, `{"firmware": {"device_name": "t", "mcu_model": "stm32f103"},
		"devices": {"FakeCustomizer": `+body+`}}`)
	require.Len(t, doc.Groups, 1)
	return doc.Groups[0]
}

const twoUarts = `{
	"u0": {"dev_id": 1, "requires": {"usart": {"usart": "USART1"}}},
	"u1": {"dev_id": 2, "requires": {"usart": {"usart": "USART2"}}}
}`

func TestAllocateGroup(t *testing.T) {
	p := testutil.Profile(t)

	t.Run("indexes follow declaration order and claims are merged", func(t *testing.T) {
		ctx, logs := testutil.Context(t)
		h := &fakeHandler{info: Info{Group: "FakeCustomizer", Prefix: "FAKE"}}
		res, err := AllocateGroup(ctx, p, h, group(t, twoUarts))
		require.NoError(t, err)

		assert.Equal(t, []int{0, 1}, h.indexes)
		require.Len(t, res.Devices, 2)
		d := res.Devices[1]
		assert.Equal(t, "u1", d.Name)
		assert.Equal(t, 1, d.Index)
		assert.EqualValues(t, 2, d.DevID)
		assert.True(t, d.HasDevID())
		assert.Equal(t, []string{"usart", "irq"}, d.Requires.Roles())
		assert.Equal(t, []string{"USART2", "USART2_IRQHandler"}, d.Resources)
		assert.Equal(t, "MAKE_ISR_WITH_INDEX(USART2_IRQHandler, FAKE_COMMON_IRQ_HANDLER, 1)", d.ISRs[0].String())

		assert.Equal(t, []string{"u1: device u1 is not the first one"}, res.Warnings)
		assert.Contains(t, logs.String(), "device u1 is not the first one")

		count, ok := res.Vocabulary.Get("__FAKE_DEVICE_COUNT__")
		require.True(t, ok)
		assert.EqualValues(t, 2, count)
	})

	t.Run("configuration is never mutated", func(t *testing.T) {
		ctx, _ := testutil.Context(t)
		g := group(t, twoUarts)
		_, err := AllocateGroup(ctx, p, &fakeHandler{info: Info{Group: "FakeCustomizer"}}, g)
		require.NoError(t, err)
		assert.Equal(t, []string{"usart"}, g.Devices[0].Requires.Roles())
	})

	t.Run("errors name the device", func(t *testing.T) {
		ctx, _ := testutil.Context(t)
		g := group(t, `{"bad": {"dev_id": 1, "requires": {"usart": {"usart": "USART9"}}}}`)
		_, err := AllocateGroup(ctx, p, &fakeHandler{info: Info{Group: "FakeCustomizer"}}, g)
		require.ErrorIs(t, err, errcode.UnknownResource)
		var e *errcode.E
		require.True(t, errors.As(err, &e))
		assert.Equal(t, "bad", e.Device)
	})

	t.Run("sanity check failure stops before allocation", func(t *testing.T) {
		ctx, _ := testutil.Context(t)
		h := &fakeHandler{
			info:   Info{Group: "FakeCustomizer"},
			sanity: errcode.New(errcode.StructuralValidation, "", "broken"),
		}
		_, err := AllocateGroup(ctx, p, h, group(t, twoUarts))
		require.ErrorIs(t, err, errcode.StructuralValidation)
		assert.Contains(t, err.Error(), "device u0: broken")
		assert.Empty(t, h.indexes)
	})

	t.Run("instance limit", func(t *testing.T) {
		ctx, _ := testutil.Context(t)
		h := &fakeHandler{info: Info{Group: "FakeCustomizer", MaxInstances: 1}}
		_, err := AllocateGroup(ctx, p, h, group(t, twoUarts))
		require.ErrorIs(t, err, errcode.StructuralValidation)
		assert.Contains(t, err.Error(), "FakeCustomizer doesn't support 2 devices per mcu. 1 devices are supported")
	})

	t.Run("duplicate vocabulary keys", func(t *testing.T) {
		ctx, _ := testutil.Context(t)
		h := &fakeHandler{
			info:  Info{Group: "FakeCustomizer"},
			vocab: func(*config.Device) string { return "g_shared" },
		}
		_, err := AllocateGroup(ctx, p, h, group(t, twoUarts))
		require.ErrorIs(t, err, errcode.DuplicateVocabularyKey)
		assert.Contains(t, err.Error(), "g_shared (u0, u1)")
	})
}

func TestDescriptorKeepsOrder(t *testing.T) {
	d := NewDescriptor().Add("z", 1).Add("a", "x").Add("m", []any{"p", "q"})
	assert.Equal(t, []string{"z", "a", "m"}, d.Keys())

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":"x","m":["p","q"]}`, string(out))

	v, ok := d.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestISRString(t *testing.T) {
	isr := ISR{Handler: "TIM2_IRQHandler", Common: "ADC_COMMON_TIMER_IRQ_HANDLER", Index: 3}
	assert.True(t, strings.HasPrefix(isr.String(), "MAKE_ISR_WITH_INDEX("))
	assert.Equal(t, "MAKE_ISR_WITH_INDEX(TIM2_IRQHandler, ADC_COMMON_TIMER_IRQ_HANDLER, 3)", isr.String())
}
