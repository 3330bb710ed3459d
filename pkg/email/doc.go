// Package email sends transactional emails through Postmark, or writes them
// to disk in development.
//
// New picks the implementation from Config: Postmark when both tokens are
// set, DevSender otherwise.
//
//	sender, err := email.New(cfg)
//	if err != nil {
//		return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "owner@example.com",
//		Subject:  "Your subscription expires in 3 days",
//		BodyHTML: body,
//		Tag:      "subscription-expiring",
//	})
//
// Both senders validate parameters first and return ErrInvalidParams on bad
// input. Delivery failures wrap ErrFailedToSendEmail.
package email
