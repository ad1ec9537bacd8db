/*
Package gateway is the HTTP implementation of ports.Gateway.

Every call returns a definite outcome instead of letting a transport failure
escape: nil on success, domain.ErrNotFound when the server answers 404, and an
error wrapping domain.ErrTransient for anything else. Deletes go through a
Confirmer first; a refusal yields domain.ErrDeclined and no request is sent.

Toggling pause does not touch local state. Callers refresh the entity
afterwards, or wait for the server's push notification.
*/
package gateway
