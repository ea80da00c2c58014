package chains

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want Alias
	}{
		{"ethereum", Alias{Base: Ethereum}},
		{"base-erc4337", Alias{Base: Base, Erc4337: true}},
		{"sepolia-erc4337", Alias{Base: Sepolia, Erc4337: true}},
		{"  Ethereum ", Alias{Base: Ethereum}},
		{"westend", Alias{Base: Westend}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			require.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	first := Normalize("base-erc4337")
	second := Normalize(first.Base.String())
	require.Equal(t, first.Base, second.Base)
	require.False(t, second.Erc4337)
}

func TestRegistryDescribe(t *testing.T) {
	reg, err := NewRegistry(DefaultDescriptors())
	require.NoError(t, err)

	d, err := reg.Describe(Ethereum)
	require.NoError(t, err)
	require.Equal(t, ModelEip7702, d.Model)
	require.True(t, d.EVM)
	require.Equal(t, 18, d.NativeDecimals)

	_, err = reg.Describe("dogecoin")
	require.ErrorIs(t, err, ErrUnsupportedChain)
}

func TestRegistryCapabilities(t *testing.T) {
	reg, err := NewRegistry(DefaultDescriptors())
	require.NoError(t, err)

	require.True(t, reg.IsEip7702Enabled(Ethereum))
	require.True(t, reg.IsErc4337Enabled(Base))
	require.False(t, reg.IsEip7702Enabled(Base))
	require.False(t, reg.IsErc4337Enabled(Polygon))
	require.False(t, reg.IsErc4337Enabled("unknown"))
}

func TestNewRegistryRejectsBadDescriptors(t *testing.T) {
	_, err := NewRegistry([]Descriptor{{Chain: ""}})
	require.Error(t, err)

	_, err = NewRegistry([]Descriptor{
		{Chain: Ethereum, EVM: false},
		{Chain: Ethereum, EVM: false},
	})
	require.Error(t, err)

	_, err = NewRegistry([]Descriptor{{Chain: Ethereum, EVM: true}})
	require.Error(t, err) // EVM chain without chain ID
}
