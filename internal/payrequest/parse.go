package payrequest

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidRequest is returned when a reference cannot be parsed as any known request kind.
var ErrInvalidRequest = errors.New("invalid payment request")

var (
	// Base58 encoding of 32 bytes is between 32 and 44 characters long.
	publicKeyLike = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
	amountFormat  = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// Parse reads a payment request reference. Transaction requests are tried
// first, then transfers. The returned error wraps ErrInvalidRequest.
func Parse(raw string) (Request, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if !strings.EqualFold(u.Scheme, Scheme) || u.Opaque == "" {
		return Request{}, fmt.Errorf("%w: %s is not a %s: reference", ErrInvalidRequest, raw, Scheme)
	}
	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return Request{}, fmt.Errorf("%w: query: %v", ErrInvalidRequest, err)
	}

	req, txErr := parseTransactionRequest(raw, u.Opaque, query)
	if txErr == nil {
		return req, nil
	}
	req, err = parseTransfer(raw, u.Opaque, query)
	if err != nil {
		return Request{}, fmt.Errorf("%w: unable to parse %s (transaction request: %v; transfer: %v)",
			ErrInvalidRequest, raw, txErr, err)
	}
	return req, nil
}

func parseTransactionRequest(raw, opaque string, query url.Values) (Request, error) {
	decoded, err := url.PathUnescape(opaque)
	if err != nil {
		return Request{}, fmt.Errorf("decode link: %w", err)
	}
	link, err := url.Parse(decoded)
	if err != nil {
		return Request{}, fmt.Errorf("parse link: %w", err)
	}
	if link.Scheme != "https" {
		return Request{}, errors.New("link scheme must be https")
	}
	label, err := atMostOnce(query, ParamLabel)
	if err != nil {
		return Request{}, err
	}
	message, err := atMostOnce(query, ParamMessage)
	if err != nil {
		return Request{}, err
	}
	return Request{
		URI:     raw,
		Kind:    TransactionRequest,
		Link:    decoded,
		Label:   label,
		Message: message,
	}, nil
}

func parseTransfer(raw, opaque string, query url.Values) (Request, error) {
	if !publicKeyLike.MatchString(opaque) {
		return Request{}, errors.New("recipient must be a base58-encoded public key")
	}
	req := Request{URI: raw, Kind: Transfer, Recipient: opaque}

	var err error
	if req.Amount, err = atMostOnce(query, ParamAmount); err != nil {
		return Request{}, err
	}
	if req.Amount != "" && !amountFormat.MatchString(req.Amount) {
		return Request{}, fmt.Errorf("%s must be a positive integer or decimal value", ParamAmount)
	}

	if req.SPLToken, err = atMostOnce(query, ParamSPLToken); err != nil {
		return Request{}, err
	}
	if req.SPLToken != "" && !publicKeyLike.MatchString(req.SPLToken) {
		return Request{}, fmt.Errorf("%s must be a base58-encoded public key", ParamSPLToken)
	}

	for _, ref := range query[ParamReference] {
		if !publicKeyLike.MatchString(ref) {
			return Request{}, fmt.Errorf("%s must be a base58-encoded public key", ParamReference)
		}
		req.References = append(req.References, ref)
	}

	if req.Label, err = atMostOnce(query, ParamLabel); err != nil {
		return Request{}, err
	}
	if req.Message, err = atMostOnce(query, ParamMessage); err != nil {
		return Request{}, err
	}
	if req.Memo, err = atMostOnce(query, ParamMemo); err != nil {
		return Request{}, err
	}
	return req, nil
}

func atMostOnce(query url.Values, key string) (string, error) {
	values := query[key]
	if len(values) > 1 {
		return "", fmt.Errorf("%s query parameter should appear at most once", key)
	}
	if len(values) == 0 {
		return "", nil
	}
	return values[0], nil
}
