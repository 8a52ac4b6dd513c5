package worker

import (
	"context"
	"fmt"
	"math"

	"items_seller/internal/domain/entity"
	"items_seller/internal/domain/service/allocator"
	"items_seller/internal/infrastructure/steam"
	"items_seller/pkg/logx"
)

// RateConverter переводит суммы между валютами аккаунтов.
type RateConverter interface {
	Convert(ctx context.Context, amount int64, from, to string) (int64, error)
}

// TransferPlanner раскладывает пул предметов донора по получателям и
// исполняет передачи.
type TransferPlanner struct {
	allocator *allocator.Allocator
	rates     RateConverter
	taxBuffer float64
}

func NewTransferPlanner(alloc *allocator.Allocator, rates RateConverter, taxBuffer float64) *TransferPlanner {
	if taxBuffer < 1 {
		taxBuffer = 1
	}

	return &TransferPlanner{
		allocator: alloc,
		rates:     rates,
		taxBuffer: taxBuffer,
	}
}

// receiverRequired — потребность получателя в его валюте: полный
// комплект пропусков плюс стоимость prime за вычетом текущего баланса,
// с запасом на комиссию.
func receiverRequired(receiver entity.Account, taxBuffer float64) int64 {
	need := receiver.Threshold() + receiver.PrimeCost - receiver.WalletBalance
	if need <= 0 {
		return 0
	}

	return int64(math.Ceil(float64(need) * taxBuffer))
}

// Plan распределяет пул донора по получателям. Потребности получателей
// переводятся в валюту донора, в ней же оценён пул.
func (p *TransferPlanner) Plan(
	ctx context.Context,
	donor entity.Account,
	pool []entity.ItemGroup,
	receivers []entity.Account,
	policy allocator.Policy,
) ([]entity.TransferPlan, error) {
	bins := make([]allocator.Bin, 0, len(receivers))

	for _, receiver := range receivers {
		required := receiverRequired(receiver, p.taxBuffer)
		if required > 0 {
			converted, err := p.rates.Convert(ctx, required, receiver.Currency, donor.Currency)
			if err != nil {
				return nil, fmt.Errorf("convert required for %s: %w", receiver.Username, err)
			}
			required = converted
		}

		bins = append(bins, allocator.Bin{
			Name:            receiver.Username,
			Required:        required,
			BaselineCovered: required == 0,
		})
	}

	plans, err := p.allocator.Allocate(pool, bins, policy)
	if err != nil {
		return nil, err
	}

	transfers := make([]entity.TransferPlan, 0, len(plans))
	for _, plan := range plans {
		transfers = append(transfers, entity.TransferPlan{
			Donor:      donor.Username,
			Receiver:   plan.Bin,
			AssetIDs:   plan.AssetIDs,
			TotalValue: plan.TotalValue,
		})
	}

	return transfers, nil
}

// Execute отправляет передачи донора получателям, по одной на
// получателя. Ошибка одной передачи не останавливает остальные.
func (p *TransferPlanner) Execute(
	ctx context.Context,
	trader Trader,
	donor string,
	receivers []entity.Account,
	plans []entity.TransferPlan,
) error {
	byName := make(map[string]entity.Account, len(receivers))
	for _, receiver := range receivers {
		byName[receiver.Username] = receiver
	}

	var lastErr error

	for _, plan := range plans {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		receiver, ok := byName[plan.Receiver]
		if !ok || receiver.TradeURL == "" {
			lastErr = fmt.Errorf("receiver %s has no trade url", plan.Receiver)
			logger(ctx).Error("transfer skipped", logx.FieldError, lastErr.Error())
			continue
		}

		var offerID string
		err := trader.Call(ctx, "send_trade", func(ctx context.Context, client steam.TradeClient) error {
			var err error
			offerID, err = client.SendTrade(ctx, receiver.TradeURL, plan.AssetIDs)
			return err
		})
		if err != nil {
			lastErr = fmt.Errorf("send trade %s -> %s: %w", donor, plan.Receiver, err)
			logger(ctx).Error("transfer failed", logx.FieldError, err.Error())
			continue
		}

		logger(ctx).Info(
			"transfer sent",
			logx.FieldAccount, donor,
			"receiver", plan.Receiver,
			"items", len(plan.AssetIDs),
			"value", plan.TotalValue,
			"offer_id", offerID,
		)
	}

	return lastErr
}
