package notify

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-shop-payments/internal/gateway"
	kafkago "github.com/segmentio/kafka-go"
)

type addedItem struct {
	CustomerID string
	InvoiceID  string
	Line       gateway.InvoiceLine
	Key        string
}

type MockInvoiceGateway struct {
	Created    []string
	Added      []addedItem
	IssuedKeys []string
	FailOnItem string
	IssueErr   error
	Ref        string
}

func (m *MockInvoiceGateway) CreateInvoice(_ context.Context, customerID, key string) (string, error) {
	m.Created = append(m.Created, key)
	return "in_" + customerID, nil
}

func (m *MockInvoiceGateway) AddInvoiceItem(_ context.Context, customerID, invoiceID string, line gateway.InvoiceLine, key string) error {
	if m.FailOnItem != "" && line.Description == m.FailOnItem {
		return context.DeadlineExceeded
	}
	m.Added = append(m.Added, addedItem{CustomerID: customerID, InvoiceID: invoiceID, Line: line, Key: key})
	return nil
}

func (m *MockInvoiceGateway) IssueInvoice(_ context.Context, invoiceID, key string) (string, error) {
	if m.IssueErr != nil {
		return "", m.IssueErr
	}
	m.IssuedKeys = append(m.IssuedKeys, invoiceID+"|"+key)
	return m.Ref, nil
}

type published struct {
	Key     []byte
	Value   []byte
	Headers []kafkago.Header
}

type MockPublisher struct {
	Sent []published
	Err  error
}

func (m *MockPublisher) Publish(_ context.Context, key, value []byte, headers ...kafkago.Header) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, published{Key: key, Value: value, Headers: headers})
	return nil
}

type sentMail struct {
	To, Subject, Body string
}

type MockSender struct {
	mu   sync.Mutex
	Sent []sentMail
	Err  error
}

func (m *MockSender) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}
