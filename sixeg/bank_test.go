package sixeg

import "testing"

func TestBankGatesChannelsIndependently(t *testing.T) {
	b := NewBank()
	b.warmup = 0 // skip the boot warmup window for this test

	shape := Shape{Attack: 0.5, Release: 0.5}
	in := [NumChannels]ChannelInput{}
	in[0] = ChannelInput{Button: true}

	out := b.Tick(shape, in)
	if !out[0].Gated {
		t.Fatal("expected channel 0 to be gated by its button")
	}
	for ch := 1; ch < NumChannels; ch++ {
		if out[ch].Gated {
			t.Fatalf("channel %d should not be gated", ch)
		}
	}
}

func TestBankIgnoresPatchedGateDuringWarmup(t *testing.T) {
	b := NewBank()
	shape := Shape{Attack: 0.5}
	in := [NumChannels]ChannelInput{}
	in[2] = ChannelInput{Patched: true, GateHighAny: true}

	out := b.Tick(shape, in)
	if out[2].Gated {
		t.Fatal("expected patched gate to be ignored during warmup")
	}
}

func TestBankHonorsPatchedGateAfterWarmup(t *testing.T) {
	b := NewBank()
	b.warmup = 0
	shape := Shape{Attack: 0.5}
	in := [NumChannels]ChannelInput{}
	in[2] = ChannelInput{Patched: true, GateHighAny: true}

	out := b.Tick(shape, in)
	if !out[2].Gated {
		t.Fatal("expected patched gate to be honored once warmup has elapsed")
	}
}

func TestBankSliderLitTracksSharedShape(t *testing.T) {
	b := NewBank()
	b.warmup = 0
	shape := Shape{Delay: 0.5, Hold: 0.5}
	b.Tick(shape, [NumChannels]ChannelInput{})

	lit := b.SliderLit()
	if !lit[0] {
		t.Fatal("expected delay slider lit")
	}
	if lit[1] {
		t.Fatal("expected attack slider unlit")
	}
	if !lit[2] {
		t.Fatal("expected hold slider lit")
	}
}
