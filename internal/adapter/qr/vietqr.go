package qr

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"vending-gateway/internal/core/domain"
)

const vietQRBase = "https://img.vietqr.io/image"

// VietQRProvider builds a VietQR quick-link image URL. It needs no network.
type VietQRProvider struct {
	bankBin     string
	template    string
	accountName string
}

// NewVietQRProvider creates a VietQR provider.
func NewVietQRProvider(bankBin, template, accountName string) (*VietQRProvider, error) {
	if bankBin == "" {
		return nil, fmt.Errorf("vietqr: bank_bin is required")
	}
	if template == "" {
		template = "compact2"
	}
	return &VietQRProvider{bankBin: bankBin, template: template, accountName: accountName}, nil
}

// Generate returns the image URL for the transfer.
func (p *VietQRProvider) Generate(_ context.Context, req domain.QRRequest) (*domain.QRImage, error) {
	if req.Account == "" {
		return nil, fmt.Errorf("vietqr: receiving account is not configured")
	}

	q := url.Values{}
	if req.Amount > 0 {
		q.Set("amount", strconv.FormatInt(req.Amount, 10))
	}
	q.Set("addInfo", req.Code)
	if p.accountName != "" {
		q.Set("accountName", p.accountName)
	}

	u := fmt.Sprintf("%s/%s-%s-%s.jpg?%s",
		vietQRBase,
		url.PathEscape(p.bankBin),
		url.PathEscape(req.Account),
		url.PathEscape(p.template),
		q.Encode(),
	)
	return &domain.QRImage{Provider: p.Name(), URL: u}, nil
}

// Name returns the provider name.
func (p *VietQRProvider) Name() string {
	return "vietqr"
}
