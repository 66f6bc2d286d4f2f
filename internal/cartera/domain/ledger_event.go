package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEventType 账务事件类型
type LedgerEventType string

const (
	EventOriginacion         LedgerEventType = "ORIGINACION"
	EventCreditoActualizado  LedgerEventType = "CREDITO_ACTUALIZADO"
	EventPagoAplicado        LedgerEventType = "PAGO_APLICADO"
	EventPagoParcial         LedgerEventType = "PAGO_PARCIAL"
	EventPagoReversado       LedgerEventType = "PAGO_REVERSADO"
	EventMoraAcumulada       LedgerEventType = "MORA_ACUMULADA"
	EventMoraAbonada         LedgerEventType = "MORA_ABONADA"
	EventMoraCondonada       LedgerEventType = "MORA_CONDONADA"
	EventEstadoCambiado      LedgerEventType = "ESTADO_CAMBIADO"
	EventConvenioCreado      LedgerEventType = "CONVENIO_CREADO"
	EventConvenioPago        LedgerEventType = "CONVENIO_PAGO"
	EventLiquidacionInversor LedgerEventType = "LIQUIDACION_INVERSIONISTA"
)

// LedgerEvent 追加式账务事件，同时作为发件箱
type LedgerEvent struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	EventID   string          `gorm:"column:event_id;type:varchar(36);uniqueIndex;not null" json:"event_id"`
	CreditoID uint            `gorm:"column:credito_id;index;not null" json:"credito_id"`
	Tipo      LedgerEventType `gorm:"column:tipo;type:varchar(40);index;not null" json:"tipo"`
	// 对信贷本金、借款人余额与滞纳金的带符号影响
	CapitalDelta     decimal.Decimal `gorm:"column:capital_delta;type:decimal(20,2);default:0;not null" json:"capital_delta"`
	SaldoAFavorDelta decimal.Decimal `gorm:"column:saldo_a_favor_delta;type:decimal(20,2);default:0;not null" json:"saldo_a_favor_delta"`
	MoraDelta        decimal.Decimal `gorm:"column:mora_delta;type:decimal(20,2);default:0;not null" json:"mora_delta"`
	Payload          string          `gorm:"column:payload;type:text" json:"payload"`
	Publicado        bool            `gorm:"column:publicado;default:false;not null;index" json:"-"`
	OccurredAt       time.Time       `gorm:"column:occurred_at;not null" json:"occurred_at"`
	PublishedAt      *time.Time      `gorm:"column:published_at" json:"-"`
}

func (LedgerEvent) TableName() string { return "ledger_events" }

// Deltas 事件携带的带符号余额变化
type Deltas struct {
	Capital     decimal.Decimal
	SaldoAFavor decimal.Decimal
	Mora        decimal.Decimal
}

// NewLedgerEvent 创建账务事件，payload 以 JSON 保存
func NewLedgerEvent(creditID uint, tipo LedgerEventType, d Deltas, payload any, at time.Time) (*LedgerEvent, error) {
	var body string
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", tipo, err)
		}
		body = string(data)
	}
	return &LedgerEvent{
		EventID:          uuid.NewString(),
		CreditoID:        creditID,
		Tipo:             tipo,
		CapitalDelta:     Round2(d.Capital),
		SaldoAFavorDelta: Round2(d.SaldoAFavor),
		MoraDelta:        Round2(d.Mora),
		Payload:          body,
		OccurredAt:       at,
	}, nil
}

// Balances 由事件回放得到的余额
type Balances struct {
	Capital     decimal.Decimal `json:"capital"`
	SaldoAFavor decimal.Decimal `json:"saldo_a_favor"`
	Mora        decimal.Decimal `json:"mora"`
}

// Replay 按顺序回放事件
func Replay(events []*LedgerEvent) Balances {
	b := Balances{Capital: decimal.Zero, SaldoAFavor: decimal.Zero, Mora: decimal.Zero}
	for _, e := range events {
		b.Capital = b.Capital.Add(e.CapitalDelta)
		b.SaldoAFavor = b.SaldoAFavor.Add(e.SaldoAFavorDelta)
		b.Mora = b.Mora.Add(e.MoraDelta)
	}
	return b
}
