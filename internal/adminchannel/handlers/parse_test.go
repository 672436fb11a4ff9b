package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

func TestParseProposal(t *testing.T) {
	tests := []struct {
		text   string
		typ    session.ActionType
		entity session.EntityType
		data   map[string]any
		lookup string
	}{
		{
			text: "agregar servicio Limpieza Dental $500",
			typ:  session.ActionCreate, entity: session.EntityService,
			data: map[string]any{"name": "Limpieza Dental", "price": 500.0},
		},
		{
			text: "Agregar servicio Corte de cabello por $1,250.50",
			typ:  session.ActionCreate, entity: session.EntityService,
			data: map[string]any{"name": "Corte de cabello", "price": 1250.5},
		},
		{
			text: "eliminar servicio Blanqueamiento",
			typ:  session.ActionDelete, entity: session.EntityService,
			data: map[string]any{"name": "Blanqueamiento"}, lookup: "Blanqueamiento",
		},
		{
			text: "cambiar precio de Consulta a $600",
			typ:  session.ActionUpdate, entity: session.EntityPrice,
			data: map[string]any{"name": "Consulta", "price": 600.0},
		},
		{
			text: "lunes de 9 a 18:30",
			typ:  session.ActionUpdate, entity: session.EntityHours,
			data: map[string]any{"day": 1, "open": "09:00", "close": "18:30", "closed": false},
		},
		{
			text: "Cambiar horario del sábado de 10:00 a 14:00",
			typ:  session.ActionUpdate, entity: session.EntityHours,
			data: map[string]any{"day": 6, "open": "10:00", "close": "14:00", "closed": false},
		},
		{
			text: "domingo cerrado",
			typ:  session.ActionUpdate, entity: session.EntityHours,
			data: map[string]any{"day": 0, "closed": true},
		},
		{
			text: "agregar doctora Ana Pérez rol ortodoncista",
			typ:  session.ActionCreate, entity: session.EntityStaff,
			data: map[string]any{"name": "Ana Pérez", "role": "ortodoncista"},
		},
		{
			text: "agregar estilista Mario",
			typ:  session.ActionCreate, entity: session.EntityStaff,
			data: map[string]any{"name": "Mario", "role": "estilista"},
		},
		{
			text: "eliminar empleado Juan",
			typ:  session.ActionDelete, entity: session.EntityStaff,
			data: map[string]any{"name": "Juan"}, lookup: "Juan",
		},
		{
			text: "crear promoción Verano 15%",
			typ:  session.ActionCreate, entity: session.EntityPromotion,
			data: map[string]any{"title": "Verano", "discount_type": store.DiscountPercentage, "discount_value": 15.0},
		},
		{
			text: "crear promocion Bienvenida $100",
			typ:  session.ActionCreate, entity: session.EntityPromotion,
			data: map[string]any{"title": "Bienvenida", "discount_type": store.DiscountFixed, "discount_value": 100.0},
		},
		{
			text: "eliminar promoción Martes 2x1",
			typ:  session.ActionDelete, entity: session.EntityPromotion,
			data: map[string]any{"title": "Martes 2x1"}, lookup: "Martes 2x1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			d, err := parseProposal(tt.text)
			require.NoError(t, err)
			require.NotNil(t, d)
			require.Equal(t, tt.typ, d.Type)
			require.Equal(t, tt.entity, d.Entity)
			require.Equal(t, tt.data, d.Data)
			require.Equal(t, tt.lookup, d.lookup)
			require.NotEmpty(t, d.prompt)
		})
	}
}

func TestParseProposal_Incomplete(t *testing.T) {
	for _, text := range []string{
		"agregar servicio Limpieza",
		"cambiar precio de Consulta",
		"lunes de 18:00 a 9:00",
		"martes de 25:00 a 26:00",
		"crear promoción Verano",
		"eliminar servicio",
	} {
		t.Run(text, func(t *testing.T) {
			d, err := parseProposal(text)
			require.Nil(t, d)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			require.NotEmpty(t, ve.Message)
		})
	}
}

func TestParseProposal_NotARequest(t *testing.T) {
	for _, text := range []string{"ver servicios", "/servicios", "horarios", "¿qué promociones hay?", ""} {
		d, err := parseProposal(text)
		require.NoError(t, err, text)
		require.Nil(t, d, text)
	}
}

func TestParseClock(t *testing.T) {
	tests := map[string]string{"9": "09:00", "9:30": "09:30", "18:00": "18:00", "0": "00:00"}
	for in, want := range tests {
		got, ok := parseClock(in)
		require.True(t, ok, in)
		require.Equal(t, want, got)
	}
	for _, bad := range []string{"24", "7:60", "ab", "9:"} {
		_, ok := parseClock(bad)
		require.False(t, ok, bad)
	}
}

func TestParseAmount(t *testing.T) {
	v, ok := parseAmount("$1,234.50")
	require.True(t, ok)
	require.Equal(t, 1234.5, v)

	for _, bad := range []string{"0", "-5", "abc", ""} {
		_, ok := parseAmount(bad)
		require.False(t, ok, bad)
	}
}
