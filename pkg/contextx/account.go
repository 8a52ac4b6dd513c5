package contextx

import (
	"context"
	"fmt"
)

type AccountName string

type contextKeyAccountName struct{}

func (a AccountName) String() string {
	return string(a)
}

func WithAccountName(ctx context.Context, name AccountName) context.Context {
	return context.WithValue(ctx, contextKeyAccountName{}, name)
}

func AccountNameFromContext(ctx context.Context) (AccountName, error) {
	name, ok := ctx.Value(contextKeyAccountName{}).(AccountName)
	if !ok {
		return "", fmt.Errorf("account name: %w", ErrNoValue)
	}

	return name, nil
}
