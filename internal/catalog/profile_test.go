package catalog_test

import (
	"testing"

	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/errcode"
	"github.com/specialistvlad/mcugraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPIOHelpers(t *testing.T) {
	p := testutil.Profile(t)

	tests := []struct {
		fn   func(string) (string, error)
		pin  string
		want string
	}{
		{p.GPIOPort, "PA_10", "GPIOA"},
		{p.GPIOPortLetter, "PB_3", "B"},
		{p.GPIOPinMask, "PA_10", "GPIO_Pin_10"},
		{p.GPIOPortSource, "PB_3", "GPIO_PortSourceGPIOB"},
		{p.GPIOPinSource, "PB_3", "GPIO_PinSource3"},
		{p.GPIOToEXTILine, "PB_5", "EXTI_Line5"},
		{p.GPIOToEXTICR, "PB_5", "AFIO_EXTICR2_EXTI5_PB"},
		{p.GPIOToEXTICR, "PC_13", "AFIO_EXTICR4_EXTI13_PC"},
	}
	for _, tc := range tests {
		got, err := tc.fn(tc.pin)
		require.NoError(t, err, tc.pin)
		assert.Equal(t, tc.want, got, tc.pin)
	}

	for _, bad := range []string{"PA", "XA_1", "PA_16", "PA_x"} {
		_, err := p.GPIOPinNumber(bad)
		assert.ErrorIs(t, err, errcode.StructuralValidation, bad)
	}
}

func TestEXTIAndVectors(t *testing.T) {
	p := testutil.Profile(t)

	for line, want := range map[string]string{
		"EXTI_Line0":  "EXTI0_IRQHandler",
		"EXTI_Line7":  "EXTI9_5_IRQHandler",
		"EXTI_Line12": "EXTI15_10_IRQHandler",
	} {
		got, err := p.EXTILineToHandler(line)
		require.NoError(t, err)
		assert.Equal(t, want, got, line)
	}
	_, err := p.EXTILineToHandler("EXTI_Line40")
	assert.ErrorIs(t, err, errcode.UnknownResource)
	_, err = p.EXTILineNumber("Line4")
	assert.ErrorIs(t, err, errcode.StructuralValidation)

	assert.Equal(t, "USART1_IRQn", p.IRQn("USART1_IRQHandler"))
	assert.Equal(t, "EXTI9_5_IRQn", p.IRQn("EXTI9_5_IRQHandler"))
}

func TestTimerFrequency(t *testing.T) {
	p := testutil.Profile(t)

	f, err := p.TimerFrequency("TIM4", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(36000000), f)
	f, err = p.TimerFrequency("TIM4", 72)
	require.NoError(t, err)
	assert.Equal(t, int64(72000000), f, "a prescaled timer on a divided bus runs at twice the bus clock")

	_, err = p.TimerFrequency("TIM4", 0)
	assert.ErrorIs(t, err, errcode.StructuralValidation)
	_, err = p.TimerFrequency("USART2", 1)
	assert.ErrorIs(t, err, errcode.WrongResourceType)
}

func TestClockEnable(t *testing.T) {
	p := testutil.Profile(t)

	groups, err := p.ClockEnable([]string{"USART2", "PA_2", "TIM4", "I2C1", "PA_3", "I2C1_REMAP"})
	require.NoError(t, err)
	assert.Equal(t, []catalog.ClockGroup{
		{Bus: "APB1", Members: []string{"RCC_APB1Periph_I2C1", "RCC_APB1Periph_TIM4", "RCC_APB1Periph_USART2"}},
		{Bus: "APB2", Members: []string{"RCC_APB2Periph_GPIOA"}},
	}, groups)

	empty, err := p.ClockEnable(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = p.ClockEnable([]string{"FLUX1"})
	assert.ErrorIs(t, err, errcode.UnknownResource)
}

func TestProfileQueries(t *testing.T) {
	p := testutil.Profile(t)

	base, remapped := p.IsRemapped("I2C1_REMAP")
	assert.True(t, remapped)
	assert.Equal(t, "I2C1", base)
	base, remapped = p.IsRemapped("USART2")
	assert.False(t, remapped)
	assert.Equal(t, "USART2", base)

	in, err := p.IsGPIOInput("GPIO_Mode_IPU")
	require.NoError(t, err)
	assert.True(t, in)
	od, err := p.IsGPIOOpenDrain("GPIO_Mode_Out_OD")
	require.NoError(t, err)
	assert.True(t, od)
	_, err = p.IsGPIOInput("GPIO_Mode_AF_PP")
	assert.ErrorIs(t, err, errcode.StructuralValidation)

	assert.True(t, p.ValidSampleTime("ADC_SampleTime_55Cycles5"))
	assert.False(t, p.ValidSampleTime("ADC_SampleTime_2Cycles"))
	assert.True(t, p.HasFirmwareFeature(catalog.FeatureSysTick))

	timers := p.ByType(catalog.TypeTimer)
	require.NotEmpty(t, timers)
	assert.Equal(t, "TIM1", timers[0].Name)
}

func TestNewRejectsInvalidCatalogs(t *testing.T) {
	leaf := func(name string) catalog.Requires {
		return catalog.NewRequires(catalog.Entry{Role: "r", Req: catalog.Leaf{Name: name}})
	}
	tests := []struct {
		name      string
		resources []*catalog.Resource
		code      errcode.Code
	}{
		{
			name:      "unnamed",
			resources: []*catalog.Resource{{Type: catalog.TypeGPIO}},
			code:      errcode.StructuralValidation,
		},
		{
			name:      "unknown type",
			resources: []*catalog.Resource{{Name: "X", Type: "flux"}},
			code:      errcode.WrongResourceType,
		},
		{
			name:      "dangling requirement",
			resources: []*catalog.Resource{{Name: "X", Type: catalog.TypeGPIO, Requires: leaf("Y")}},
			code:      errcode.UnknownResource,
		},
		{
			name: "self requirement",
			resources: []*catalog.Resource{
				{Name: "X", Type: catalog.TypeGPIO, Requires: leaf("X")},
			},
			code: errcode.MalformedRequirement,
		},
		{
			name: "unknown handler",
			resources: []*catalog.Resource{
				{Name: "T", Type: catalog.TypeTimer, Handlers: map[string]string{"timer_handler": "H"}, HandlerOrder: []string{"timer_handler"}},
			},
			code: errcode.UnknownResource,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := catalog.New(tc.resources...)
			assert.ErrorIs(t, err, tc.code)
		})
	}

	c, err := catalog.New(
		&catalog.Resource{Name: "PA_0", Type: catalog.TypeGPIO},
		&catalog.Resource{Name: "TIM2", Type: catalog.TypeTimer, Requires: catalog.NewRequires(catalog.Entry{Role: "CH1", Req: catalog.Singleton(catalog.TypeGPIO, "PA_0")})},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"PA_0", "TIM2"}, c.Names())
	assert.Equal(t, 2, c.Len())
}
