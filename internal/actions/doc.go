// Package actions содержит handler'ы для всех типов действий syncback.
//
// Handler не обращается к почтовому серверу сам: он загружает сообщение
// в транзакции воркера (мягко удалённые видны), проверяет его и
// публикует mq.SyncbackCommand для агента аккаунта. Ошибка публикации
// оставляет запись невыполненной, и диспетчер повторит её позже.
package actions
